// Package server exposes the REST API: document upload and lifecycle, risk
// listings, grounded chat, semantic search, the XLSX export, and a health
// probe. Handlers wrap service errors into a uniform JSON envelope.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/clauselens/clauselens/internal/async"
	"github.com/clauselens/clauselens/internal/chat"
	"github.com/clauselens/clauselens/internal/common"
	"github.com/clauselens/clauselens/internal/embedding"
	"github.com/clauselens/clauselens/internal/entity"
	"github.com/clauselens/clauselens/internal/ingest"
	"github.com/clauselens/clauselens/internal/repository"
	"github.com/clauselens/clauselens/internal/vector"
)

// Config holds the HTTP server settings.
type Config struct {
	Addr        string
	MaxUploadMB int64
	SearchTopK  int // default k for /api/search
}

// Pinger is the slice of the connection pool the health probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ChatService answers document questions and serves the conversation history.
type ChatService interface {
	Ask(ctx context.Context, documentID uuid.UUID, question string) (*chat.Answer, error)
	History(ctx context.Context, documentID uuid.UUID, limit int) ([]*entity.ChatMessage, error)
}

// Exporter produces the XLSX risk report.
type Exporter interface {
	RiskReportXLSX(ctx context.Context) ([]byte, error)
}

// Ingestor accepts uploaded files.
type Ingestor interface {
	IngestFile(ctx context.Context, req ingest.IngestRequest) (ingest.IngestionResult, error)
}

// Deps collects everything the handlers call.
type Deps struct {
	Docs      repository.DocumentRepository
	Jobs      repository.AnalysisJobRepository
	Contracts repository.ContractRepository
	Risks     repository.RiskFlagRepository
	Chunks    repository.ChunkRepository
	Ingestor  Ingestor
	Queue     async.Queue
	Chat      ChatService
	Export    Exporter
	Index     *vector.Index
	Engine    embedding.Engine // nil disables /api/search
	DB        Pinger
}

type Server struct {
	cfg    Config
	logger *slog.Logger
	router *gin.Engine
	deps   Deps
}

func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = ingest.DefaultMaxFileBytes >> 20
	}
	if cfg.SearchTopK <= 0 {
		cfg.SearchTopK = 10
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		deps:   deps,
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLog)
	router.MaxMultipartMemory = 8 << 20

	router.GET("/healthz", s.handleHealth)

	api := router.Group("/api")
	{
		api.POST("/documents", s.handleUpload)
		api.GET("/documents", s.handleListDocuments)
		api.GET("/documents/:id", s.handleGetDocument)
		api.DELETE("/documents/:id", s.handleDeleteDocument)
		api.POST("/documents/:id/reprocess", s.handleReprocess)
		api.GET("/documents/:id/risks", s.handleDocumentRisks)
		api.POST("/documents/:id/chat", s.handleChatAsk)
		api.GET("/documents/:id/chat", s.handleChatHistory)
		api.GET("/search", s.handleSearch)
		api.GET("/export/risks.xlsx", s.handleExportRisks)
	}

	s.router = router
	return s
}

// Router exposes the handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.listen", "addr", s.cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("http.shutdown")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLog(c *gin.Context) {
	start := time.Now()
	reqID := uuid.New().String()
	c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), reqID))
	c.Header("X-Request-ID", reqID)
	c.Next()
	s.logger.Info("http.request",
		"request_id", reqID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", c.Writer.Status(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
