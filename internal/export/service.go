// Package export produces the XLSX risk report: one workbook with a per-document
// summary sheet and a per-flag detail sheet.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/risk"
)

const (
	docsSheet  = "Documents"
	flagsSheet = "Risk Flags"

	listPageSize = 500
)

// Service is a tiny façade over repositories that produces XLSX bytes for exports.
type Service struct {
	docs      repository.DocumentRepository
	contracts repository.ContractRepository
	risks     repository.RiskFlagRepository
	logger    *slog.Logger
}

func NewService(docs repository.DocumentRepository, contracts repository.ContractRepository, risks repository.RiskFlagRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{docs: docs, contracts: contracts, risks: risks, logger: logger}
}

// RiskReportXLSX returns the full risk report workbook as bytes.
func (s *Service) RiskReportXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	docs, err := s.listAllDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	flags, err := s.risks.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("query risk flags: %w", err)
	}
	byDoc := make(map[uuid.UUID][]entity.RiskFlag, len(docs))
	for _, f := range flags {
		byDoc[f.DocumentID] = append(byDoc[f.DocumentID], *f)
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", docsSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(flagsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(docsSheet)
	f.SetActiveSheet(activeIndex)

	if err := s.writeDocumentsSheet(ctx, f, docs, byDoc); err != nil {
		return nil, err
	}
	if err := s.writeFlagsSheet(f, docs, byDoc); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"documents", len(docs),
		"flags", len(flags),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteRiskReport writes the workbook to path (used by the batch CLI).
func (s *Service) WriteRiskReport(ctx context.Context, path string) error {
	b, err := s.RiskReportXLSX(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *Service) listAllDocuments(ctx context.Context) ([]*entity.Document, error) {
	var out []*entity.Document
	for offset := 0; ; offset += listPageSize {
		page, err := s.docs.List(ctx, listPageSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < listPageSize {
			return out, nil
		}
	}
}

func (s *Service) writeDocumentsSheet(ctx context.Context, f *excelize.File, docs []*entity.Document, byDoc map[uuid.UUID][]entity.RiskFlag) error {
	headers := []string{
		"Filename",
		"Doc Type",
		"Status",
		"Title",
		"Parties",
		"Effective Date",
		"Expiration Date",
		"Contract Value",
		"Risk Score",
		"Risk Level",
		"Critical",
		"High",
		"Medium",
		"Low",
		"Uploaded At",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(docsSheet, cell, h)
	}

	row := 2
	for _, d := range docs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(docsSheet, cell, v)
		}

		title, parties, effective, expiration, value := "", "", "", "", ""
		docType := deref(d.DocType)
		if c, err := s.contracts.GetByDocument(ctx, d.ID); err == nil && c != nil {
			title = c.Title
			parties = joinParties(c.Parties)
			effective = deref(c.EffectiveDate)
			expiration = deref(c.ExpirationDate)
			value = moneyString(c.ContractValue, c.Currency)
			if c.DocType != "" {
				docType = c.DocType
			}
		}

		assessment := risk.Assess(byDoc[d.ID])

		write(1, d.Filename)
		write(2, docType)
		write(3, d.Status)
		write(4, title)
		write(5, truncate(parties, 140))
		write(6, effective)
		write(7, expiration)
		write(8, value)
		write(9, assessment.Score)
		write(10, assessment.Level)
		write(11, assessment.CountsBySeverity["critical"])
		write(12, assessment.CountsBySeverity["high"])
		write(13, assessment.CountsBySeverity["medium"])
		write(14, assessment.CountsBySeverity["low"])
		write(15, d.UploadedAt.Format("2006-01-02 15:04"))

		row++
	}

	_ = f.SetColWidth(docsSheet, "A", "A", 32) // filename
	_ = f.SetColWidth(docsSheet, "B", "B", 20) // type
	_ = f.SetColWidth(docsSheet, "C", "C", 12) // status
	_ = f.SetColWidth(docsSheet, "D", "D", 36) // title
	_ = f.SetColWidth(docsSheet, "E", "E", 40) // parties
	_ = f.SetColWidth(docsSheet, "F", "H", 14) // dates, value
	_ = f.SetColWidth(docsSheet, "I", "N", 10) // score, level, counts
	_ = f.SetColWidth(docsSheet, "O", "O", 18) // uploaded

	return nil
}

func (s *Service) writeFlagsSheet(f *excelize.File, docs []*entity.Document, byDoc map[uuid.UUID][]entity.RiskFlag) error {
	headers := []string{
		"Filename",
		"Category",
		"Severity",
		"Score",
		"Title",
		"Detail",
		"Excerpt",
		"Source",
		"Clause",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(flagsSheet, cell, h)
	}

	names := make(map[uuid.UUID]string, len(docs))
	for _, d := range docs {
		names[d.ID] = d.Filename
	}

	row := 2
	for _, d := range docs {
		for _, fl := range byDoc[d.ID] {
			write := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, row)
				_ = f.SetCellValue(flagsSheet, cell, v)
			}

			write(1, names[fl.DocumentID])
			write(2, fl.Category)
			write(3, fl.Severity)
			write(4, fl.Score)
			write(5, fl.Title)
			write(6, truncate(fl.Detail, 140))
			write(7, truncate(fl.Excerpt, 200))
			write(8, fl.Source)
			write(9, fl.ClauseSeq)

			row++
		}
	}

	_ = f.SetColWidth(flagsSheet, "A", "A", 32) // filename
	_ = f.SetColWidth(flagsSheet, "B", "C", 16) // category, severity
	_ = f.SetColWidth(flagsSheet, "D", "D", 8)  // score
	_ = f.SetColWidth(flagsSheet, "E", "E", 34) // title
	_ = f.SetColWidth(flagsSheet, "F", "F", 48) // detail
	_ = f.SetColWidth(flagsSheet, "G", "G", 64) // excerpt
	_ = f.SetColWidth(flagsSheet, "H", "I", 10) // source, clause

	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinParties(parties []string) string {
	out := ""
	for i, p := range parties {
		if i > 0 {
			out += "; "
		}
		out += p
	}
	return out
}

func moneyString(value, currency *string) string {
	if value == nil || *value == "" {
		return ""
	}
	if currency != nil && *currency != "" {
		return *currency + " " + *value
	}
	return *value
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	// back off to a rune boundary so the cell stays valid UTF-8
	cut := n - 1
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
