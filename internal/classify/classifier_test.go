package classify

import (
	"strings"
	"testing"

	"github.com/clauselens/clauselens/constants"
)

func TestClassifyByTitle(t *testing.T) {
	c := NewClassifier()

	cases := []struct {
		name     string
		text     string
		filename string
		want     constants.DocType
		source   string
	}{
		{
			name: "nda title",
			text: "MUTUAL NON-DISCLOSURE AGREEMENT\n\nThis Agreement is made between Acme Corp and Bob LLC.",
			want: constants.NDA, source: "nda-title",
		},
		{
			name: "lease title",
			text: "RESIDENTIAL LEASE AGREEMENT\n\nThe Landlord leases to the Tenant the premises at 5 Main St.",
			want: constants.Lease, source: "lease-title",
		},
		{
			name: "employment title",
			text: "EMPLOYMENT AGREEMENT\n\nThe Company hires the Executive as Chief Engineer.",
			want: constants.Employment, source: "employment-title",
		},
		{
			name: "msa title",
			text: "MASTER SERVICES AGREEMENT between Acme Corporation and Globex LLC.",
			want: constants.ServiceAgreement, source: "services-title",
		},
		{
			name: "invoice fields",
			text: "INVOICE\nInvoice Number: 1042\nAmount Due: $1,200.00\n",
			want: constants.Invoice, source: "invoice-fields",
		},
		{
			name: "invoice word in body",
			text: "Please find the attached invoice for March.",
			want: constants.Invoice, source: "invoice-word",
		},
		{
			name:     "filename signal only",
			text:     "Please find the bill attached.",
			filename: "Invoice-1042.pdf",
			want:     constants.Invoice, source: "invoice-word",
		},
		{
			name: "lease from parties",
			text: "AGREEMENT TO OCCUPY\nThe Lessor grants the Lessee the right to occupy the unit.",
			want: constants.Lease, source: "lease-parties",
		},
		{
			name: "generic boilerplate",
			text: "PURCHASE AGREEMENT\n\nWHEREAS the Seller owns the assets; IN WITNESS WHEREOF the parties execute this Agreement.",
			want: constants.Contract, source: "contract-boilerplate",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Classify(tc.text, tc.filename)
			if got == nil {
				t.Fatal("expected a classification")
			}
			if got.DocType != tc.want {
				t.Errorf("doc type = %s, want %s (source %s)", got.DocType, tc.want, got.Source)
			}
			if got.Source != tc.source {
				t.Errorf("source = %s, want %s", got.Source, tc.source)
			}
			if got.Score <= 0 || got.Score > 1 {
				t.Errorf("score out of range: %v", got.Score)
			}
		})
	}
}

func TestClassifyNoMatch(t *testing.T) {
	c := NewClassifier()
	if got := c.Classify("Shopping list: eggs, milk, bread.", "list.txt"); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClassifyTitleBeatsBody(t *testing.T) {
	c := NewClassifier()
	// NDA title plus generic boilerplate: the title pattern must win.
	text := "NON-DISCLOSURE AGREEMENT\n\nWHEREAS the parties wish to share Confidential Information..."
	got := c.Classify(text, "")
	if got == nil || got.DocType != constants.NDA {
		t.Fatalf("got %+v, want NDA", got)
	}
}

func TestClassifyScansOnlyHead(t *testing.T) {
	c := NewClassifier()
	// the signal sits past the scan window
	text := strings.Repeat("x", headChars+100) + " master services agreement"
	if got := c.Classify(text, ""); got != nil {
		t.Errorf("expected nil for signal beyond head window, got %+v", got)
	}
}
