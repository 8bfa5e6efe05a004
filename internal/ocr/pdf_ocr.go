package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clauselens/clauselens/constants"
)

// minPDFTextChars is the smallest normalized text layer we accept before
// concluding the PDF is a scan and falling back to OCR.
const minPDFTextChars = 64

// pdfTextConfidence is assigned when the embedded text layer is used; the
// layer is authoritative rather than a recognition guess.
const pdfTextConfidence = 0.95

// extractPDF tries the embedded text layer first and falls back to
// rasterize-and-OCR when the layer is missing or too thin.
func (e *Extractor) extractPDF(ctx context.Context, path string) (ExtractionResult, error) {
	res := ExtractionResult{SourceType: constants.PDF}

	text, pages, warns, err := e.pdfToText(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err == nil {
		norm := Normalize(text)
		if len(norm) >= minPDFTextChars {
			res.Text = norm
			res.Pages = pages
			res.Method = "pdf-text"
			res.Confidence = pdfTextConfidence
			return res, nil
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("text layer too small (%d chars), falling back to OCR", len(norm)))
	} else {
		res.Warnings = append(res.Warnings, fmt.Sprintf("pdftotext failed: %v", err))
	}

	e.logger.Debug("pdf text layer unusable, rasterizing", "path", path)

	text, pages, warns, err = e.pdfToOCR(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	if err != nil {
		return res, fmt.Errorf("pdf ocr fallback: %w", err)
	}
	res.Text = Normalize(text)
	if strings.TrimSpace(res.Text) == "" {
		return res, fmt.Errorf("ocr produced no text for %s", path)
	}
	res.Pages = pages
	res.Method = "pdf-ocr"
	res.Language = e.cfg.TesseractLang
	res.Confidence = heuristicConfidence(res.Text)
	return res, nil
}

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "cl-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		e.logger.Warn("capping OCR page count", "path", path, "pages", len(matches), "max", e.cfg.MaxPages)
		matches = matches[:e.cfg.MaxPages]
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		txt, w, err := e.tesseractOCR(ctx, img)
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}
	pages = len(matches)
	return b.String(), pages, warns, nil
}
