package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clauselens/clauselens/internal/async"
	"github.com/clauselens/clauselens/internal/chat"
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
	"github.com/clauselens/clauselens/internal/server"
	"github.com/clauselens/clauselens/internal/vector"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
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
	messages := repository.NewChatMessageRepository(pool, logger)

	// Warm the in-memory index from persisted chunk embeddings
	index := vector.NewIndex()
	if n, err := index.Load(ctx, chunks); err != nil {
		logger.Warn("vector index warm-up failed", "error", err)
	} else {
		logger.Info("vector index warmed", "vectors", n)
	}

	engine, err := embedding.NewEngine(ctx, cfg.Embedding, logger)
	if err != nil {
		logger.Error("building embedding engine", "error", err)
		os.Exit(1)
	}

	// Model clients. Without an API key extraction falls back to heuristics
	// and chat reports itself unavailable.
	heur := heuristic.NewExtractor(logger)
	var (
		fields    llm.FieldExtractor = heur
		answerer  llm.Answerer
		typeModel llm.DocTypeClassifier
		reviewer  llm.RiskReviewer
	)
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
		answerer = client
		typeModel = client
		reviewer = client
	} else {
		logger.Warn("GEMINI_API_KEY not set, running with heuristic extraction only")
	}

	// Pipeline
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
		indexStage = pipeline.NewIndexStage(jobs, chunks, index, engine, chunker, logger)
	}
	proc := pipeline.NewProcessor(logger, docs, extractStage, analyzeStage, indexStage)

	queue := async.NewProcessorQueue(proc, logger,
		async.WithWorkers(cfg.Pipeline.Workers),
		async.WithQueueSize(cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(cfg.Pipeline.ProcessTimeout),
	)

	ingestor := ingest.NewIngestor(docs, cfg.Server.UploadDir, logger)
	ingestor.MaxBytes = cfg.Server.MaxUploadBytes

	// Optional watch directory; dropped files flow through the same queue
	// as HTTP uploads.
	if cfg.Pipeline.WatchDir != "" {
		startWatch(ctx, cfg.Pipeline.WatchDir, ingestor, queue, logger)
	}

	chatSvc := chat.NewService(logger, chat.Config{
		TopK:     cfg.Pipeline.ChatTopK,
		MinScore: cfg.Pipeline.ChatMinScore,
	}, docs, jobs, chunks, contracts, messages, index, engine, answerer)

	srv := server.New(server.Config{
		Addr:        cfg.Server.HTTPAddr,
		MaxUploadMB: cfg.Server.MaxUploadBytes >> 20,
	}, server.Deps{
		Docs:      docs,
		Jobs:      jobs,
		Contracts: contracts,
		Risks:     risks,
		Chunks:    chunks,
		Ingestor:  ingestor,
		Queue:     queue,
		Chat:      chatSvc,
		Export:    export.NewService(docs, contracts, risks, logger),
		Index:     index,
		Engine:    engine,
		DB:        pool,
	}, logger)

	err = srv.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(drainCtx)

	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func startWatch(ctx context.Context, dir string, ing *ingest.Ingestor, queue async.Queue, logger *slog.Logger) {
	files, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{dir},
		InitialScan: true,
		Debounce:    2 * time.Second,
	}, logger)
	if err != nil {
		logger.Error("starting watcher", "dir", dir, "error", err)
		os.Exit(1)
	}

	go func() {
		for path := range files {
			res, err := ing.IngestFile(ctx, ingest.IngestRequest{SourcePath: path})
			if err != nil {
				logger.Warn("watch ingest failed", "path", path, "error", err)
				continue
			}
			if res.Duplicate {
				continue
			}
			if err := queue.Enqueue(ctx, async.Job{DocumentID: res.Document.ID}); err != nil {
				logger.Warn("watch enqueue failed", "document_id", res.Document.ID, "error", err)
			}
		}
	}()
	go func() {
		for err := range errs {
			logger.Warn("watcher error", "error", err)
		}
	}()
}
