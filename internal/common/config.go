package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	OCR       OCRConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Pipeline  PipelineConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr       string
	UploadDir      string
	MaxUploadBytes int64
}

// OCRConfig holds text-extraction tool configuration
type OCRConfig struct {
	PdftotextPath string
	PdftoppmPath  string
	TesseractPath string
	TesseractLang string
	TessdataDir   string
	DPI           int
	MaxPages      int
	TSVConfidence bool
}

// LLMConfig holds Gemini configuration
type LLMConfig struct {
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float32
	MaxOutputTokens int
	Timeout         time.Duration
	MaxRetries      int
	RiskReview      bool
}

// EmbeddingConfig selects and configures the embedding engine
type EmbeddingConfig struct {
	Provider       string // "genai" | "ollama" | "none"
	APIKey         string
	Model          string
	OllamaEndpoint string
	OllamaModel    string
}

// PipelineConfig holds processing thresholds and worker sizing
type PipelineConfig struct {
	MinConfidence  float32
	MaxTextChars   int
	ChunkMaxChars  int
	ChunkOverlap   int
	ChatTopK       int
	ChatMinScore   float32
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	WatchDir       string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
			UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 25<<20)),
		},
		OCR: OCRConfig{
			PdftotextPath: getEnv("PDFTOTEXT_PATH", "pdftotext"),
			PdftoppmPath:  getEnv("PDFTOPPM_PATH", "pdftoppm"),
			TesseractPath: getEnv("TESSERACT_PATH", "tesseract"),
			TesseractLang: getEnv("TESSERACT_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			DPI:           getEnvAsInt("OCR_DPI", 300),
			MaxPages:      getEnvAsInt("OCR_MAX_PAGES", 40),
			TSVConfidence: getEnvAsBool("OCR_TSV_CONFIDENCE", true),
		},
		LLM: LLMConfig{
			APIKey:          getEnv("GEMINI_API_KEY", ""),
			Model:           getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			BaseURL:         getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
			Temperature:     getEnvAsFloat32("GEMINI_TEMPERATURE", 0.0),
			MaxOutputTokens: getEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", 8192),
			Timeout:         getEnvAsDuration("GEMINI_TIMEOUT", 90*time.Second),
			MaxRetries:      getEnvAsInt("GEMINI_MAX_RETRIES", 3),
			RiskReview:      getEnvAsBool("GEMINI_RISK_REVIEW", true),
		},
		Embedding: EmbeddingConfig{
			Provider:       getEnv("EMBED_PROVIDER", "genai"),
			APIKey:         getEnv("EMBED_API_KEY", getEnv("GEMINI_API_KEY", "")),
			Model:          getEnv("EMBED_MODEL", "gemini-embedding-001"),
			OllamaEndpoint: getEnv("OLLAMA_ENDPOINT", "http://localhost:11434"),
			OllamaModel:    getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		},
		Pipeline: PipelineConfig{
			MinConfidence:  getEnvAsFloat32("MIN_CONFIDENCE", 0.60),
			MaxTextChars:   getEnvAsInt("MAX_TEXT_CHARS", 12000),
			ChunkMaxChars:  getEnvAsInt("CHUNK_MAX_CHARS", 1600),
			ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 200),
			ChatTopK:       getEnvAsInt("CHAT_TOP_K", 5),
			ChatMinScore:   getEnvAsFloat32("CHAT_MIN_SCORE", 0.25),
			Workers:        getEnvAsInt("PIPELINE_WORKERS", 4),
			QueueSize:      getEnvAsInt("PIPELINE_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PIPELINE_PROCESS_TIMEOUT", 5*time.Minute),
			WatchDir:       getEnv("WATCH_DIR", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	switch c.Embedding.Provider {
	case "genai", "ollama", "none":
	default:
		return NewAppError("CONFIG_ERROR", "EMBED_PROVIDER must be one of: genai | ollama | none", ErrInvalidInput)
	}
	if c.Embedding.Provider == "genai" && c.Embedding.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "EMBED_API_KEY (or GEMINI_API_KEY) is required for the genai embedding provider", ErrInvalidInput)
	}
	return nil
}
