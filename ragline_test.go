package ragline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/ragline/ai/mock"
	"github.com/poiesic/ragline/config"
	"github.com/poiesic/ragline/core"
	"github.com/poiesic/ragline/extract"
	"github.com/poiesic/ragline/ingestion"
	"github.com/poiesic/ragline/uploads"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.FromEnv()
	cfg.Store = config.StoreBadger
	cfg.UploadStore = config.UploadDisk
	cfg.DataDir = filepath.Join(t.TempDir(), "db")
	cfg.UploadDir = filepath.Join(t.TempDir(), "uploads")
	cfg.Addr = "127.0.0.1:0"
	cfg.Workers = 2
	return cfg
}

func TestOpen(t *testing.T) {
	t.Run("badger with default provider", func(t *testing.T) {
		engine, err := Open(context.Background(), testConfig(t))
		require.NoError(t, err)
		assert.NotNil(t, engine.Collection())
		assert.NotNil(t, engine.backend)
		assert.NoError(t, engine.Close())
	})

	t.Run("nil config", func(t *testing.T) {
		_, err := Open(context.Background(), nil)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store = "chroma"
		_, err := Open(context.Background(), cfg)
		assert.ErrorIs(t, err, config.ErrInvalidConfig)
	})

	t.Run("data dir is a file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.DataDir = filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(cfg.DataDir, []byte("x"), 0o644))

		engine, err := Open(context.Background(), cfg)
		assert.Error(t, err)
		assert.Nil(t, engine)
	})
}

func TestEngine_IngestAndAnswer(t *testing.T) {
	provider := mock.NewMockProviderWithServices(mock.NewMockEmbedder(), mock.NewMockGenerator("Margins widened."))
	engine, err := Open(context.Background(), testConfig(t), WithProvider(provider))
	require.NoError(t, err)
	defer engine.Close()

	path := filepath.Join(t.TempDir(), "q3.txt")
	require.NoError(t, os.WriteFile(path, []byte("Revenue rose.\fMargins widened."), 0o644))

	proc, err := engine.NewProcessor()
	require.NoError(t, err)
	stats, err := proc.Run(context.Background(), ingestion.Request{Path: path}, ingestion.NoopObserver{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pages)
	assert.Equal(t, 2, stats.Chunks)

	n, err := engine.Collection().Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	re, err := engine.NewReembedder(nil, 1)
	require.NoError(t, err)
	res, err := re.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Chunks)

	searcher, err := engine.NewSearcher()
	require.NoError(t, err)
	answer, err := searcher.Answer(context.Background(), "What happened to margins?")
	require.NoError(t, err)
	assert.Equal(t, "Margins widened.", answer)
}

func TestEngine_NewProcessor_PDFValidation(t *testing.T) {
	tests := []struct {
		name     string
		validate bool
	}{
		{"validation enabled", true},
		{"validation disabled", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.ValidatePDF = tt.validate
			engine, err := Open(context.Background(), cfg, WithProvider(mock.NewMockProvider()))
			require.NoError(t, err)
			defer engine.Close()

			path := filepath.Join(t.TempDir(), "broken.pdf")
			require.NoError(t, os.WriteFile(path, []byte("%PDF-1.7\ngarbage"), 0o644))

			proc, err := engine.NewProcessor()
			require.NoError(t, err)
			_, err = proc.Run(context.Background(), ingestion.Request{Path: path}, ingestion.NoopObserver{})
			require.ErrorIs(t, err, extract.ErrOpenDocument)
			if tt.validate {
				assert.ErrorIs(t, err, extract.ErrInvalidPDF)
			} else {
				assert.NotErrorIs(t, err, extract.ErrInvalidPDF)
			}
		})
	}
}

func TestEngine_NewService(t *testing.T) {
	provider := mock.NewMockProvider()
	engine, err := Open(context.Background(), testConfig(t), WithProvider(provider))
	require.NoError(t, err)
	defer engine.Close()

	svc, err := engine.NewService(context.Background())
	require.NoError(t, err)
	defer svc.Runner.Shutdown(context.Background())

	assert.Equal(t, "127.0.0.1:0", svc.Server.Addr())
	state := svc.Registry.Create("a.txt")
	assert.Equal(t, core.JobQueued, state.Status)

	store, err := engine.NewUploadStore(context.Background())
	require.NoError(t, err)
	assert.IsType(t, &uploads.DiskStore{}, store)
}
