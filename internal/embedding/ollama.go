package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clauselens/clauselens/internal/llm"
)

const (
	ollamaDefaultEndpoint = "http://localhost:11434"
	ollamaDefaultModel    = "nomic-embed-text"
	ollamaMaxRetries      = 3
)

// OllamaEngine generates embeddings against an Ollama-compatible /api/embed
// endpoint. nomic-style task prefixes ("search_document: ", "search_query: ")
// are prepended for asymmetric retrieval.
type OllamaEngine struct {
	endpoint string
	model    string
	client   *http.Client
	log      *slog.Logger
}

func NewOllamaEngine(endpoint, model string, logger *slog.Logger) *OllamaEngine {
	if endpoint == "" {
		endpoint = ollamaDefaultEndpoint
	}
	if model == "" {
		model = ollamaDefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OllamaEngine{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
		log:      logger,
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (e *OllamaEngine) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text}, task)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string, task Task) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prefix := taskPrefix(task)
	input := make([]string, len(texts))
	for i, t := range texts {
		input[i] = prefix + t
	}

	body := ollamaEmbedRequest{Model: e.model, Input: input}
	url := strings.TrimRight(e.endpoint, "/") + "/api/embed"

	var raw []byte
	var status int
	var err error
	for attempt := 0; attempt <= ollamaMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}
		}

		raw, status, err = llm.SendJSON(ctx, e.client, url, body, nil, e.log)
		if err == nil {
			break
		}
		// transport failures (status 0) and 5xx are retryable
		if status != 0 && status < 500 {
			return nil, fmt.Errorf("ollama embed: status %d: %s", status, snippet(raw))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("ollama embed: decode response: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	return resp.Embeddings, nil
}

func taskPrefix(task Task) string {
	if task == TaskQuery {
		return "search_query: "
	}
	return "search_document: "
}

// Dimensions reports the vector size of the default model (nomic-embed-text).
func (e *OllamaEngine) Dimensions() int {
	return 768
}

func (e *OllamaEngine) Name() string {
	return "ollama:" + e.model
}

func snippet(raw []byte) string {
	s := string(raw)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
