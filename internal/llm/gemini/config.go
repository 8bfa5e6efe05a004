package gemini

import (
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

// Config for the Gemini client.
type Config struct {
	APIKey          string        // if empty, falls back to env GEMINI_API_KEY
	BaseURL         string        // default https://generativelanguage.googleapis.com/v1beta
	Model           string        // e.g. "gemini-2.0-flash"
	Temperature     float32       // 0..2
	MaxOutputTokens int           // default 8192
	Timeout         time.Duration // http client timeout
	MaxRetries      int           // retries on 429/5xx, default 3
	StrictOptional  bool          // fail on optional-field schema violations instead of sanitizing
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger

	mu          sync.Mutex
	lastRequest time.Time
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 8192
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}
