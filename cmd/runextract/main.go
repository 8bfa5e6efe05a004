package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/ocr"
)

// Runs text extraction on one file and prints what the pipeline would see.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runextract <path-to-document>")
		os.Exit(2)
	}
	path := os.Args[1]
	if _, err := os.Stat(path); err != nil {
		logger.Error("cannot stat file", "path", path, "error", err)
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:           cfg.OCR.PdftotextPath,
		Pdftoppm:            cfg.OCR.PdftoppmPath,
		Tesseract:           cfg.OCR.TesseractPath,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		DPI:                 cfg.OCR.DPI,
		MaxPages:            cfg.OCR.MaxPages,
		EnableTSVConfidence: cfg.OCR.TSVConfidence,
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := extractor.Extract(ctx, path)
	if err != nil {
		logger.Error("extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	logger.Info("extraction ok",
		"path", path,
		"source_type", res.SourceType,
		"method", res.Method,
		"pages", res.Pages,
		"confidence", res.Confidence,
		"language", res.Language,
		"chars", len(res.Text),
		"warnings", res.Warnings,
		"elapsed", res.Duration,
	)

	head := res.Text
	if len(head) > 2000 {
		head = head[:2000]
	}
	fmt.Println("---- text head ----")
	fmt.Println(head)
}
