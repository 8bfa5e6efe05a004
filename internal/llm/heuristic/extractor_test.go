package heuristic

import (
	"context"
	"testing"

	"github.com/clauselens/clauselens/internal/llm"
)

const sampleAgreement = `MASTER SERVICES AGREEMENT

This Master Services Agreement is entered into by and between Acme Corporation ("Provider") and Globex LLC ("Client"), effective as of January 15, 2024.

1. Services. Provider shall perform the services described in each Statement of Work.

2. Fees. Client shall pay Provider a total of $150,000.00 payable net thirty.

3. Term. This Agreement shall automatically renew for successive one-year terms unless either party gives 60 days' written notice of non-renewal.

4. Governing Law. This Agreement shall be governed by and construed in accordance with the laws of the State of Delaware, without regard to conflicts of law.

5. Expiration Date: 2026-01-15.
`

func TestExtractFieldsFromAgreement(t *testing.T) {
	e := NewExtractor(nil)
	got, raw, err := e.ExtractFields(context.Background(), extractReq(sampleAgreement, "msa_acme.pdf"))
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("expected raw JSON output")
	}

	if got.Title != "MASTER SERVICES AGREEMENT" {
		t.Errorf("title = %q", got.Title)
	}
	if len(got.Parties) != 2 || got.Parties[0] != "Acme Corporation" || got.Parties[1] != "Globex LLC" {
		t.Errorf("parties = %v", got.Parties)
	}
	if got.EffectiveDate != "2024-01-15" {
		t.Errorf("effective_date = %q", got.EffectiveDate)
	}
	if got.ExpirationDate != "2026-01-15" {
		t.Errorf("expiration_date = %q", got.ExpirationDate)
	}
	if got.GoverningLaw != "Delaware" {
		t.Errorf("governing_law = %q", got.GoverningLaw)
	}
	if got.ContractValue != "150000.00" {
		t.Errorf("contract_value = %q", got.ContractValue)
	}
	if got.AutoRenews == nil || !*got.AutoRenews {
		t.Error("expected auto_renews = true")
	}
	if got.NoticePeriodDays != 60 {
		t.Errorf("notice_period_days = %d", got.NoticePeriodDays)
	}
	if got.ModelConfidence != Confidence {
		t.Errorf("confidence = %v", got.ModelConfidence)
	}
}

func TestExtractFieldsSparseText(t *testing.T) {
	e := NewExtractor(nil)
	got, _, err := e.ExtractFields(context.Background(), extractReq("Random note with no contract language.", "note.txt"))
	if err != nil {
		t.Fatalf("ExtractFields: %v", err)
	}
	if len(got.Parties) != 0 {
		t.Errorf("expected no parties, got %v", got.Parties)
	}
	if got.EffectiveDate != "" || got.GoverningLaw != "" || got.ContractValue != "" {
		t.Errorf("expected empty optionals, got %+v", got)
	}
	if got.AutoRenews != nil {
		t.Error("expected nil auto_renews")
	}
}

func TestGuessTitleFallsBackToFilename(t *testing.T) {
	if got := guessTitle("", "lease_2024.pdf"); got != "lease_2024" {
		t.Errorf("title = %q", got)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2024-01-15", "2024-01-15"},
		{"January 15, 2024", "2024-01-15"},
		{"1/15/2024", "2024-01-15"},
		{"someday soon", ""},
	}
	for _, tc := range cases {
		if got := normalizeDate(tc.in); got != tc.want {
			t.Errorf("normalizeDate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaxAmountPicksLargest(t *testing.T) {
	text := "Setup fee of $500.00, monthly fee of $2,000.00, total value $24,500.00 over the term."
	got, ok := maxAmount(text)
	if !ok || got != "24500.00" {
		t.Errorf("maxAmount = %q (ok=%v)", got, ok)
	}

	if _, ok := maxAmount("no money here"); ok {
		t.Error("expected no amount")
	}
}

func extractReq(text, filename string) llm.ExtractRequest {
	return llm.ExtractRequest{DocText: text, FilenameHint: filename}
}
