package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/poiesic/ragline/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every key FromEnv reads so host settings don't leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RAGLINE_ADDR", "RAGLINE_DATA_DIR", "RAGLINE_UPLOAD_DIR", "RAGLINE_STORE", "DATABASE_URL",
		"RAGLINE_UPLOAD_STORE", "AWS_REGION", "BUCKET_NAME", "RAGLINE_S3_PREFIX", "AWS_ACCESS_KEY", "AWS_SECRET_KEY",
		"RAGLINE_AI_PROVIDER", "GEMINI_API_KEY", "OPENAI_API_KEY", "RAGLINE_AI_API_KEY",
		"RAGLINE_EMBEDDING_HOST", "RAGLINE_GENERATION_HOST", "RAGLINE_EMBEDDING_MODEL", "RAGLINE_GENERATION_MODEL",
		"RAGLINE_BATCH_SIZE", "RAGLINE_MAX_RETRIES", "RAGLINE_RETRY_DELAY", "RAGLINE_WORKERS",
		"RAGLINE_JOB_CAPACITY", "RAGLINE_JOB_TTL", "RAGLINE_TOP_K", "RAGLINE_CHUNK_SIZE",
		"RAGLINE_CHUNK_OVERLAP", "RAGLINE_PROGRESS_EVERY", "RAGLINE_VALIDATE_PDF",
	} {
		t.Setenv(key, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)
	cfg := FromEnv()

	assert.Equal(t, ":8000", cfg.Addr)
	assert.Equal(t, "./ragline_db", cfg.DataDir)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.Equal(t, StoreBadger, cfg.Store)
	assert.Equal(t, UploadDisk, cfg.UploadStore)
	assert.Equal(t, ai.ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, 10, cfg.BatchSize)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.Equal(t, 1024, cfg.JobCapacity)
	assert.Equal(t, 24*time.Hour, cfg.JobTTL)
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 10, cfg.ProgressEvery)
	assert.True(t, cfg.ValidatePDF)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAGLINE_ADDR", "127.0.0.1:9000")
	t.Setenv("RAGLINE_STORE", "PGVECTOR")
	t.Setenv("DATABASE_URL", "postgres://localhost/ragline")
	t.Setenv("RAGLINE_UPLOAD_STORE", "s3")
	t.Setenv("BUCKET_NAME", "docs")
	t.Setenv("RAGLINE_AI_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("RAGLINE_BATCH_SIZE", "32")
	t.Setenv("RAGLINE_RETRY_DELAY", "2s")
	t.Setenv("RAGLINE_JOB_TTL", "1h")
	t.Setenv("RAGLINE_VALIDATE_PDF", "false")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, StorePgvector, cfg.Store)
	assert.Equal(t, "docs", cfg.S3.Bucket)
	assert.Equal(t, ai.ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, "secret", cfg.AI.APIKey)
	assert.Equal(t, "gemini-embedding-001", cfg.AI.EmbeddingModel)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.RetryDelay)
	assert.Equal(t, time.Hour, cfg.JobTTL)
	assert.False(t, cfg.ValidatePDF)
}

func TestFromEnv_MalformedNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("RAGLINE_TOP_K", "many")
	t.Setenv("RAGLINE_JOB_TTL", "forever")
	t.Setenv("RAGLINE_VALIDATE_PDF", "sometimes")

	cfg := FromEnv()
	assert.Equal(t, 5, cfg.TopK)
	assert.Equal(t, 24*time.Hour, cfg.JobTTL)
	assert.True(t, cfg.ValidatePDF)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown store", func(c *Config) { c.Store = "chroma" }},
		{"pgvector without url", func(c *Config) { c.Store = StorePgvector }},
		{"unknown upload store", func(c *Config) { c.UploadStore = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.UploadStore = UploadS3 }},
		{"gemini without key", func(c *Config) { c.AI = ai.DefaultGeminiConfig("") }},
		{"zero batch size", func(c *Config) { c.BatchSize = 0 }},
		{"zero workers", func(c *Config) { c.Workers = 0 }},
		{"overlap not below size", func(c *Config) { c.ChunkOverlap = c.ChunkSize }},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg := FromEnv()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("env file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("RAGLINE_TOP_K=7\nRAGLINE_ADDR=:7000\n"), 0o600))
		// godotenv.Load only fills unset keys, so unset what clearEnv blanked.
		require.NoError(t, os.Unsetenv("RAGLINE_TOP_K"))
		require.NoError(t, os.Unsetenv("RAGLINE_ADDR"))
		t.Cleanup(func() {
			_ = os.Unsetenv("RAGLINE_TOP_K")
			_ = os.Unsetenv("RAGLINE_ADDR")
		})

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.TopK)
		assert.Equal(t, ":7000", cfg.Addr)
	})

	t.Run("environment wins over file", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(path, []byte("RAGLINE_TOP_K=7\n"), 0o600))
		t.Setenv("RAGLINE_TOP_K", "3")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.TopK)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		clearEnv(t)
		_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
		assert.Error(t, err)
	})

	t.Run("invalid settings", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("RAGLINE_STORE", "chroma")
		path := filepath.Join(t.TempDir(), "empty.env")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		_, err := Load(path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}
