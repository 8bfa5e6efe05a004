package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/clauselens/clauselens/internal/chunk"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/export"
	"github.com/clauselens/clauselens/internal/extract"
	"github.com/clauselens/clauselens/internal/ingest"
	"github.com/clauselens/clauselens/internal/llm"
	"github.com/clauselens/clauselens/internal/llm/gemini"
	"github.com/clauselens/clauselens/internal/llm/heuristic"
	"github.com/clauselens/clauselens/internal/ocr"
	"github.com/clauselens/clauselens/internal/pipeline"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/risk"
	"github.com/clauselens/clauselens/internal/vector"
)

// printError prints to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		dir        = flag.String("dir", "", "directory of contracts to process (required)")
		out        = flag.String("out", "", "output XLSX report path (defaults to the parent directory)")
		skipHidden = flag.Bool("skip-hidden", true, "skip dotfiles and hidden directories")
		watch      = flag.Bool("watch", false, "keep watching the directory after the initial pass")
	)
	flag.Parse()

	if *dir == "" {
		printError("Error: --dir is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "risk-report.xlsx")
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pool, err := repository.Open(ctx, repository.Config{
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("opening database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repository.Migrate(ctx, pool, logger); err != nil {
		logger.Error("applying schema", "error", err)
		os.Exit(1)
	}

	docs := repository.NewDocumentRepository(pool, logger)
	jobs := repository.NewAnalysisJobRepository(pool, logger)
	chunks := repository.NewChunkRepository(pool, logger)
	contracts := repository.NewContractRepository(pool, logger)
	risks := repository.NewRiskFlagRepository(pool, logger)

	engine, err := embedding.NewEngine(ctx, cfg.Embedding, logger)
	if err != nil {
		logger.Error("building embedding engine", "error", err)
		os.Exit(1)
	}

	heur := heuristic.NewExtractor(logger)
	var fields llm.FieldExtractor = heur
	var typeModel llm.DocTypeClassifier
	var reviewer llm.RiskReviewer
	if cfg.LLM.APIKey != "" {
		client := gemini.NewClient(gemini.Config{
			APIKey:          cfg.LLM.APIKey,
			BaseURL:         cfg.LLM.BaseURL,
			Model:           cfg.LLM.Model,
			Temperature:     cfg.LLM.Temperature,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			Timeout:         cfg.LLM.Timeout,
			MaxRetries:      cfg.LLM.MaxRetries,
		}, logger)
		fields = client
		typeModel = client
		reviewer = client
	} else {
		logger.Warn("GEMINI_API_KEY not set, running with heuristic extraction only")
	}

	extractor := extract.NewOCRAdapter(ocr.NewExtractor(ocr.Config{
		Pdftotext:           cfg.OCR.PdftotextPath,
		Pdftoppm:            cfg.OCR.PdftoppmPath,
		Tesseract:           cfg.OCR.TesseractPath,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		DPI:                 cfg.OCR.DPI,
		MaxPages:            cfg.OCR.MaxPages,
		EnableTSVConfidence: cfg.OCR.TSVConfidence,
	}, logger))
	extractStage := pipeline.NewExtractStage(docs, jobs, extractor, logger)
	analyzeStage := pipeline.NewAnalyzeStage(logger, pipeline.AnalyzeConfig{
		MinConfidence: cfg.Pipeline.MinConfidence,
		MaxTextChars:  cfg.Pipeline.MaxTextChars,
		RiskReview:    cfg.LLM.RiskReview,
		ModelName:     cfg.LLM.Model,
	}, jobs, docs, contracts, risks, fields, heur, risk.NewEngine(logger))
	analyzeStage.TypeModel = typeModel
	analyzeStage.Reviewer = reviewer

	var indexStage *pipeline.IndexStage
	if engine != nil {
		chunker := &chunk.Chunker{MaxChars: cfg.Pipeline.ChunkMaxChars, Overlap: cfg.Pipeline.ChunkOverlap}
		indexStage = pipeline.NewIndexStage(jobs, chunks, vector.NewIndex(), engine, chunker, logger)
	}
	proc := pipeline.NewProcessor(logger, docs, extractStage, analyzeStage, indexStage)

	ingestor := ingest.NewIngestor(docs, cfg.Server.UploadDir, logger)
	outcomes, stats, err := ingestor.IngestDirectory(ctx, *dir, *skipHidden)
	if err != nil {
		logger.Error("scanning directory", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("directory scanned",
		"matched", stats.Matched, "succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated, "failed", stats.Failed,
	)

	// Process the new documents one at a time; duplicates were handled on a
	// previous run.
	var processed, failed int
	for _, o := range outcomes {
		if o.Err != "" || o.Duplicate {
			continue
		}
		if _, err := proc.ProcessDocument(ctx, o.DocumentID, false); err != nil {
			logger.Error("processing failed", "path", o.Path, "document_id", o.DocumentID, "error", err)
			failed++
			continue
		}
		processed++
	}

	exporter := export.NewService(docs, contracts, risks, logger)
	if err := exporter.WriteRiskReport(ctx, *out); err != nil {
		logger.Error("writing report", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("batch complete", "processed", processed, "failed", failed, "report", *out)

	if *watch {
		runWatch(ctx, *dir, *out, ingestor, proc, exporter, logger)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

// runWatch processes files dropped into the directory until interrupted,
// refreshing the report after each one.
func runWatch(ctx context.Context, dir, out string, ing *ingest.Ingestor, proc *pipeline.Processor, exporter *export.Service, logger *slog.Logger) {
	files, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:    []string{dir},
		Debounce: 2 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("starting watcher", "dir", dir, "error", err)
		os.Exit(1)
	}
	logger.Info("watching for new documents", "dir", dir)

	go func() {
		for err := range errs {
			logger.Warn("watcher error", "error", err)
		}
	}()

	for path := range files {
		res, err := ing.IngestFile(ctx, ingest.IngestRequest{SourcePath: path})
		if err != nil {
			logger.Warn("watch ingest failed", "path", path, "error", err)
			continue
		}
		if res.Duplicate {
			continue
		}
		if _, err := proc.ProcessDocument(ctx, res.Document.ID, false); err != nil {
			logger.Error("processing failed", "path", path, "document_id", res.Document.ID, "error", err)
			continue
		}
		if err := exporter.WriteRiskReport(ctx, out); err != nil {
			logger.Warn("refreshing report failed", "path", out, "error", err)
		}
	}
}
