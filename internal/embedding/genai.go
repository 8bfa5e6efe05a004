package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const (
	genaiDefaultModel = "gemini-embedding-001"

	// the batch endpoint rejects oversized requests, so large documents are
	// embedded in slices
	genaiBatchMax = 100
)

// GenAIEngine generates embeddings with the Gemini API.
// gemini-embedding-001 produces 768-dimensional vectors.
type GenAIEngine struct {
	client *genai.Client
	model  string
	log    *slog.Logger
}

func NewGenAIEngine(ctx context.Context, apiKey, model string, logger *slog.Logger) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai embedding: API key is required")
	}
	if model == "" {
		model = genaiDefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("genai embedding: create client: %w", err)
	}
	return &GenAIEngine{client: client, model: model, log: logger}, nil
}

func (e *GenAIEngine) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += genaiBatchMax {
		end := min(start+genaiBatchMax, len(texts))
		vecs, err := e.embedSlice(ctx, texts[start:end], task)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *GenAIEngine) embedSlice(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	started := time.Now()
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType: e.taskType(task),
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("genai embed: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	vecs := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		if len(emb.Values) == 0 {
			return nil, fmt.Errorf("genai embed: empty vector at index %d", i)
		}
		vecs[i] = emb.Values
	}

	e.log.Debug("embed.genai.ok",
		"texts", len(texts),
		"dims", len(vecs[0]),
		"task", string(task),
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return vecs, nil
}

func (e *GenAIEngine) taskType(task Task) string {
	switch task {
	case TaskDocument:
		return "RETRIEVAL_DOCUMENT"
	case TaskQuery:
		return "RETRIEVAL_QUERY"
	default:
		return "SEMANTIC_SIMILARITY"
	}
}

func (e *GenAIEngine) Dimensions() int {
	return 768
}

func (e *GenAIEngine) Name() string {
	return "genai:" + e.model
}

// Close releases the underlying API client. The genai client holds no
// resources that require explicit release.
func (e *GenAIEngine) Close() error {
	return nil
}
