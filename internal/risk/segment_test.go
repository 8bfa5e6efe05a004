package risk

import (
	"fmt"
	"strings"
	"testing"
)

func TestSegmentClausesNumbered(t *testing.T) {
	text := `MASTER SERVICES AGREEMENT

This Agreement is made between Acme Corp and Globex LLC.

1. Services. Provider shall perform the services described in each SOW.

2. Fees. Client shall pay the fees set out in Exhibit A.

2.1 Invoicing. Provider invoices monthly in arrears.

3. Term. The initial term is one year.
`
	clauses := SegmentClauses(text)
	if len(clauses) != 5 {
		t.Fatalf("expected 5 clauses (preamble + 4 sections), got %d", len(clauses))
	}

	if clauses[0].Heading != "" || !strings.Contains(clauses[0].Text, "MASTER SERVICES AGREEMENT") {
		t.Errorf("preamble clause wrong: %+v", clauses[0])
	}
	if !strings.HasPrefix(clauses[1].Heading, "1. Services") {
		t.Errorf("clause 2 heading = %q", clauses[1].Heading)
	}
	if !strings.Contains(clauses[3].Text, "monthly in arrears") {
		t.Errorf("subsection text = %q", clauses[3].Text)
	}

	for i, cl := range clauses {
		if cl.Seq != i+1 {
			t.Errorf("clause %d has seq %d", i, cl.Seq)
		}
	}
}

func TestSegmentClausesStartsWithHeading(t *testing.T) {
	clauses := SegmentClauses("1. First. Text one.\n\n2. Second. Text two.\n")
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(clauses))
	}
	if clauses[0].Seq != 1 || !strings.Contains(clauses[0].Text, "Text one") {
		t.Errorf("clause 1 = %+v", clauses[0])
	}
}

func TestSegmentClausesArticleHeadings(t *testing.T) {
	text := "ARTICLE I. Definitions\nCapitalized terms have the meanings below.\n\nARTICLE II. Services\nThe services are described in Schedule 1.\n"
	clauses := SegmentClauses(text)
	if len(clauses) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(clauses))
	}
	if !strings.HasPrefix(clauses[1].Heading, "ARTICLE II") {
		t.Errorf("heading = %q", clauses[1].Heading)
	}
}

func TestSegmentClausesParagraphFallback(t *testing.T) {
	text := "This letter confirms our understanding regarding the consulting arrangement between the parties, including scope and schedule.\n\nCompensation will be invoiced monthly and is payable within thirty days of receipt of each invoice by the client."
	clauses := SegmentClauses(text)
	if len(clauses) != 2 {
		t.Fatalf("expected 2 paragraph clauses, got %d: %+v", len(clauses), clauses)
	}
	if clauses[0].Heading != "" {
		t.Errorf("paragraph clauses have no headings, got %q", clauses[0].Heading)
	}
}

func TestSegmentClausesEmpty(t *testing.T) {
	if got := SegmentClauses(""); len(got) != 0 {
		t.Errorf("expected no clauses for empty text, got %d", len(got))
	}
}

func TestSegmentClausesCapsLargeDocuments(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= maxClauses+50; i++ {
		fmt.Fprintf(&sb, "%d. Section heading number %d.\nThe parties agree to the obligations set out in this section.\n\n", i, i)
	}

	clauses := SegmentClauses(sb.String())
	if len(clauses) != maxClauses {
		t.Fatalf("expected cap at %d clauses, got %d", maxClauses, len(clauses))
	}
	if last := clauses[len(clauses)-1]; last.Seq != maxClauses {
		t.Errorf("last clause seq = %d, want %d", last.Seq, maxClauses)
	}
}

func TestSegmentParagraphsCapsLargeDocuments(t *testing.T) {
	block := strings.Repeat("The receiving party shall keep all disclosed information confidential. ", 2)
	var sb strings.Builder
	for i := 0; i < maxClauses+50; i++ {
		sb.WriteString(block)
		sb.WriteString("\n\n")
	}

	clauses := SegmentClauses(sb.String())
	if len(clauses) != maxClauses {
		t.Fatalf("expected cap at %d paragraph clauses, got %d", maxClauses, len(clauses))
	}
}
