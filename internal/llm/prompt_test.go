package llm

import (
	"strings"
	"testing"
)

func TestBuildUserPromptIncludesTextOnlyWithoutAttachment(t *testing.T) {
	req := ExtractRequest{
		DocText:      "THIS AGREEMENT is made between Acme Corp and Bob LLC.",
		FilenameHint: "msa.pdf",
	}

	withText := BuildUserPrompt(req, false)
	if !strings.Contains(withText, "Acme Corp") {
		t.Error("expected document text in prompt when no image is attached")
	}
	if !strings.Contains(withText, "msa.pdf") {
		t.Error("expected filename hint in prompt")
	}

	withImage := BuildUserPrompt(req, true)
	if strings.Contains(withImage, "Acme Corp") {
		t.Error("document text should be omitted when an image is attached")
	}
	if !strings.Contains(withImage, "image") {
		t.Error("expected attachment note in prompt")
	}
}

func TestBuildUserPromptTruncatesLongText(t *testing.T) {
	req := ExtractRequest{
		DocText:      strings.Repeat("clause text ", 2000),
		MaxTextChars: 500,
	}
	out := BuildUserPrompt(req, false)
	if !strings.Contains(out, "truncated") {
		t.Error("expected truncation marker for long text")
	}
	if len(out) > 700 {
		t.Errorf("prompt not truncated, len=%d", len(out))
	}
}

func TestBuildSystemPromptListsTaxonomy(t *testing.T) {
	req := ExtractRequest{AllowedDocTypes: []string{"Contract", "NDA", "Other"}}
	sys := BuildSystemPrompt(req)
	for _, want := range []string{"Contract", "NDA", "Other", "JSON Schema"} {
		if !strings.Contains(sys, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestBuildSystemPromptCarriesHint(t *testing.T) {
	req := ExtractRequest{DocTypeHint: "Lease"}
	if sys := BuildSystemPrompt(req); !strings.Contains(sys, "'Lease'") {
		t.Error("expected heuristic hint to appear in system prompt")
	}
}

func TestDocTypeRubricOnlyCoversAllowed(t *testing.T) {
	rubric := buildDocTypeRubric([]string{"NDA", "Invoice"})
	if !strings.Contains(rubric, "NDA:") || !strings.Contains(rubric, "Invoice:") {
		t.Error("rubric should define the allowed types")
	}
	if strings.Contains(rubric, "Lease:") {
		t.Error("rubric should not define types outside the enum")
	}
}

func TestBuildAnswerUserPromptNumbersPassages(t *testing.T) {
	req := AnswerRequest{
		Question: "What is the notice period?",
		DocTitle: "Master Services Agreement",
		DocType:  "ServiceAgreement",
		Passages: []Passage{
			{Seq: 4, Heading: "Termination", Text: "Either party may terminate on thirty days notice."},
			{Seq: 9, Text: "Fees are due net thirty."},
		},
		History: []ChatTurn{{Role: "user", Content: "Summarize the agreement."}},
	}
	out := BuildAnswerUserPrompt(req)

	for _, want := range []string{"[1]", "[2]", "Termination", "Master Services Agreement", "What is the notice period?", "Summarize the agreement."} {
		if !strings.Contains(out, want) {
			t.Errorf("answer prompt missing %q", want)
		}
	}
	if strings.Index(out, "[1]") > strings.Index(out, "[2]") {
		t.Error("passages out of order")
	}
}

func TestHeadText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short stays whole", "abc", 10, "abc"},
		{"trims whitespace", "  abc  ", 10, "abc"},
		{"cuts at max", "abcdefgh", 4, "abcd\n…(truncated)"},
		{"zero max means no cut", "abcdefgh", 0, "abcdefgh"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := headText(tc.in, tc.max); got != tc.want {
				t.Errorf("headText(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}

	// multi-byte runes are not split
	if got := headText("ééééé", 3); got != "é\n…(truncated)" { // each é is 2 bytes
		t.Errorf("cut inside rune: %q", got)
	}
}
