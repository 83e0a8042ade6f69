// Package config loads ragline settings from the environment and optional
// .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/poiesic/ragline/ai"
	"github.com/poiesic/ragline/chunking"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/jobs"
	"github.com/poiesic/ragline/search"
	"github.com/poiesic/ragline/uploads"
)

// Vector store backends.
const (
	StoreBadger   = "badger"
	StorePgvector = "pgvector"
)

// Upload store backends.
const (
	UploadDisk = "disk"
	UploadS3   = "s3"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid config")
)

// Config is the complete runtime configuration.
type Config struct {
	Addr      string
	DataDir   string
	UploadDir string

	Store       string
	DatabaseURL string

	UploadStore string
	S3          uploads.S3Config

	AI *ai.Config

	BatchSize     int
	MaxRetries    int
	RetryDelay    time.Duration
	Workers       int
	JobCapacity   int
	JobTTL        time.Duration
	TopK          int
	ChunkSize     int
	ChunkOverlap  int
	ProgressEvery int

	// ValidatePDF runs a structural check on each PDF before extraction.
	ValidatePDF bool
}

// Load reads files with godotenv (variables already set in the environment
// win) and then builds a Config from the environment. With no files it
// tries ./.env and ignores its absence.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, fmt.Errorf("load env files: %w", err)
	}

	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from the current environment without validating it.
func FromEnv() *Config {
	cfg := &Config{
		Addr:      getEnv("RAGLINE_ADDR", ":8000"),
		DataDir:   getEnv("RAGLINE_DATA_DIR", "./ragline_db"),
		UploadDir: getEnv("RAGLINE_UPLOAD_DIR", "./uploads"),

		Store:       strings.ToLower(getEnv("RAGLINE_STORE", StoreBadger)),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		UploadStore: strings.ToLower(getEnv("RAGLINE_UPLOAD_STORE", UploadDisk)),
		S3: uploads.S3Config{
			Region:    getEnv("AWS_REGION", "us-east-2"),
			Bucket:    getEnv("BUCKET_NAME", ""),
			Prefix:    getEnv("RAGLINE_S3_PREFIX", "uploads/"),
			AccessKey: getEnv("AWS_ACCESS_KEY", ""),
			SecretKey: getEnv("AWS_SECRET_KEY", ""),
			TempDir:   getEnv("RAGLINE_UPLOAD_DIR", ""),
		},

		AI: aiFromEnv(),

		BatchSize:     getEnvInt("RAGLINE_BATCH_SIZE", ingestion.DefaultBatchSize),
		MaxRetries:    getEnvInt("RAGLINE_MAX_RETRIES", ingestion.DefaultMaxAttempts),
		RetryDelay:    getEnvDuration("RAGLINE_RETRY_DELAY", ingestion.DefaultRetryDelay),
		Workers:       getEnvInt("RAGLINE_WORKERS", runtime.NumCPU()),
		JobCapacity:   getEnvInt("RAGLINE_JOB_CAPACITY", jobs.DefaultCapacity),
		JobTTL:        getEnvDuration("RAGLINE_JOB_TTL", jobs.DefaultTTL),
		TopK:          getEnvInt("RAGLINE_TOP_K", search.DefaultTopK),
		ChunkSize:     getEnvInt("RAGLINE_CHUNK_SIZE", chunking.DefaultChunkSize),
		ChunkOverlap:  getEnvInt("RAGLINE_CHUNK_OVERLAP", chunking.DefaultChunkOverlap),
		ProgressEvery: getEnvInt("RAGLINE_PROGRESS_EVERY", ingestion.DefaultProgressEvery),
		ValidatePDF:   getEnvBool("RAGLINE_VALIDATE_PDF", true),
	}
	return cfg
}

// aiFromEnv starts from the provider's defaults and overlays any set keys.
func aiFromEnv() *ai.Config {
	provider := strings.ToLower(getEnv("RAGLINE_AI_PROVIDER", ai.ProviderOpenAI))

	var cfg *ai.Config
	if provider == ai.ProviderGemini {
		cfg = ai.DefaultGeminiConfig(getEnv("GEMINI_API_KEY", ""))
	} else {
		cfg = ai.DefaultConfig()
		cfg.Provider = provider
		cfg.APIKey = getEnv("OPENAI_API_KEY", "")
	}

	cfg.EmbeddingHost = getEnv("RAGLINE_EMBEDDING_HOST", cfg.EmbeddingHost)
	cfg.GenerationHost = getEnv("RAGLINE_GENERATION_HOST", cfg.GenerationHost)
	cfg.EmbeddingModel = getEnv("RAGLINE_EMBEDDING_MODEL", cfg.EmbeddingModel)
	cfg.GenerationModel = getEnv("RAGLINE_GENERATION_MODEL", cfg.GenerationModel)
	cfg.APIKey = getEnv("RAGLINE_AI_API_KEY", cfg.APIKey)
	return cfg
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Store {
	case StoreBadger:
		if c.DataDir == "" {
			return fmt.Errorf("%w: RAGLINE_DATA_DIR is required for the badger store", ErrInvalidConfig)
		}
	case StorePgvector:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the pgvector store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown RAGLINE_STORE %q", ErrInvalidConfig, c.Store)
	}

	switch c.UploadStore {
	case UploadDisk:
		if c.UploadDir == "" {
			return fmt.Errorf("%w: RAGLINE_UPLOAD_DIR is required for disk uploads", ErrInvalidConfig)
		}
	case UploadS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("%w: BUCKET_NAME is required for s3 uploads", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown RAGLINE_UPLOAD_STORE %q", ErrInvalidConfig, c.UploadStore)
	}

	if c.AI == nil {
		return fmt.Errorf("%w: missing AI settings", ErrInvalidConfig)
	}
	if err := c.AI.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	for _, p := range []struct {
		key string
		val int
	}{
		{"RAGLINE_BATCH_SIZE", c.BatchSize},
		{"RAGLINE_MAX_RETRIES", c.MaxRetries},
		{"RAGLINE_WORKERS", c.Workers},
		{"RAGLINE_JOB_CAPACITY", c.JobCapacity},
		{"RAGLINE_TOP_K", c.TopK},
		{"RAGLINE_CHUNK_SIZE", c.ChunkSize},
		{"RAGLINE_PROGRESS_EVERY", c.ProgressEvery},
	} {
		if p.val < 1 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.key, p.val)
		}
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: RAGLINE_CHUNK_OVERLAP must be in [0, %d), got %d", ErrInvalidConfig, c.ChunkSize, c.ChunkOverlap)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: RAGLINE_RETRY_DELAY must not be negative", ErrInvalidConfig)
	}
	if c.JobTTL <= 0 {
		return fmt.Errorf("%w: RAGLINE_JOB_TTL must be positive", ErrInvalidConfig)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-integer setting", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("ignoring non-boolean setting", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("ignoring invalid duration setting", "key", key, "value", v, "default", def)
		return def
	}
	return d
}
