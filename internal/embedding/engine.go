// Package embedding generates vector embeddings for document chunks and chat
// questions. Two backends are supported: the Gemini API (genai) and any
// Ollama-compatible local server.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clauselens/clauselens/internal/common"
)

// Task tells the backend how a vector will be used. Retrieval embeddings are
// asymmetric: documents and queries are encoded differently.
type Task string

const (
	TaskDocument Task = "RETRIEVAL_DOCUMENT"
	TaskQuery    Task = "RETRIEVAL_QUERY"
)

// Engine generates vector embeddings for text.
type Engine interface {
	Embed(ctx context.Context, text string, task Task) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, task Task) ([][]float32, error)
	Dimensions() int
	Name() string
}

// NewEngine builds the engine selected by cfg.Provider. Provider "none" returns
// a nil Engine; callers skip the index stage in that case.
func NewEngine(ctx context.Context, cfg common.EmbeddingConfig, logger *slog.Logger) (Engine, error) {
	switch cfg.Provider {
	case "genai":
		return NewGenAIEngine(ctx, cfg.APIKey, cfg.Model, logger)
	case "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, logger), nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q (use genai | ollama | none)", cfg.Provider)
	}
}
