package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg := FromEnv()

	assert.Equal(t, ProviderOpenAI, cfg.Provider.Name)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, 1000, cfg.Chunking.ChunkSize)
	assert.Equal(t, 200, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 50, cfg.Cleaning.MinLength)
	assert.Equal(t, 5, cfg.Retrieval.MaxResults)
	assert.InDelta(t, 0.7, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.False(t, cfg.Retrieval.Rerank)
	assert.Equal(t, 100, cfg.Embedding.BatchSize)
	assert.Equal(t, BackendPostgres, cfg.Vector.Backend)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("PG_PORT", "6543")
	t.Setenv("CHUNK_SIZE", "300")
	t.Setenv("SIMILARITY_THRESHOLD", "0.25")
	t.Setenv("RERANK", "true")
	t.Setenv("LOADER_MONITORING_TIME", "250ms")
	t.Setenv("MAX_RESULTS", "not-a-number")
	t.Setenv("LOADER_PDF_CROP_TOP", "36")

	cfg := FromEnv()

	assert.Equal(t, 6543, cfg.Postgres.Port)
	assert.Equal(t, 300, cfg.Chunking.ChunkSize)
	assert.InDelta(t, 0.25, cfg.Retrieval.SimilarityThreshold, 1e-9)
	assert.True(t, cfg.Retrieval.Rerank)
	assert.Equal(t, 250*time.Millisecond, cfg.Loader.MonitoringTime)
	assert.Equal(t, 5, cfg.Retrieval.MaxResults)
	assert.InDelta(t, 36.0, cfg.Loader.PDFCropTop, 1e-9)
	assert.Zero(t, cfg.Loader.PDFCropBottom)
	assert.NoError(t, cfg.Validate())
}

func TestOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunking:
  chunk_size: 400
  chunk_overlap: 40
retrieval:
  rerank: true
  max_results: 8
loader:
  monitoring_time: 2s
`), 0o644))

	cfg := FromEnv()
	require.NoError(t, cfg.Overlay(path))

	assert.Equal(t, 400, cfg.Chunking.ChunkSize)
	assert.Equal(t, 40, cfg.Chunking.ChunkOverlap)
	assert.True(t, cfg.Chunking.SplitBySentence)
	assert.True(t, cfg.Retrieval.Rerank)
	assert.Equal(t, 8, cfg.Retrieval.MaxResults)
	assert.Equal(t, 2*time.Second, cfg.Loader.MonitoringTime)

	assert.Error(t, cfg.Overlay(filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := FromEnv()
		c.Provider.Name = ProviderOllama
		return c
	}

	c := base()
	c.Provider.Name = ProviderGemini
	c.Provider.APIKey = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Provider.Name = "llama-cpp"
	assert.Error(t, c.Validate())

	c = base()
	c.Vector.Backend = "qdrant"
	assert.Error(t, c.Validate())

	c = base()
	c.Storage.Kind = StorageS3
	c.Storage.Bucket = ""
	assert.Error(t, c.Validate())

	c = base()
	c.Chunking.ChunkOverlap = c.Chunking.ChunkSize
	assert.Error(t, c.Validate())

	assert.NoError(t, base().Validate())
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vector:\n  backend: memory\n"), 0o644))
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("RAG_CONFIG_FILE", path)

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Vector.Backend)
}

func TestConnString(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "rag", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=rag sslmode=disable", p.ConnString())
}
