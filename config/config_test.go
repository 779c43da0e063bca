package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noDotenv keeps tests from picking up a stray .env in the package dir.
const noDotenv = "testdata/does-not-exist.env"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg, err := Load("", noDotenv)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "./chroma_data", cfg.Store.PersistDir)
	assert.Equal(t, "user_realities", cfg.Store.Collection)
	assert.Equal(t, "paraphrase-multilingual-MiniLM-L12-v2", cfg.Embedder.Model)
	assert.Equal(t, 3, cfg.Tracker.TopK)
	assert.Equal(t, 0.6, cfg.Tracker.SimilarityThreshold)
	assert.Equal(t, 30*time.Second, cfg.GetTurnTimeout())
	assert.Equal(t, filepath.Join("chroma_data", "realities.db"), cfg.SQLitePath())
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reality.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
store:
  backend: sqlite
  sqlite_path: /tmp/r.db
tracker:
  top_k: 5
  similarity_threshold: 0.75
turn_timeout: 5s
`), 0o644))

	cfg, err := Load(path, noDotenv)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/tmp/r.db", cfg.SQLitePath())
	assert.Equal(t, 5, cfg.Tracker.TopK)
	assert.Equal(t, 0.75, cfg.Tracker.SimilarityThreshold)
	assert.Equal(t, 5*time.Second, cfg.GetTurnTimeout())
	// Untouched sections keep their defaults.
	assert.Equal(t, "user_realities", cfg.Store.Collection)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), noDotenv)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("REALITY_ADDR", ":7070")
	t.Setenv("REALITY_STORE_BACKEND", "sqlite")
	t.Setenv("REALITY_TOP_K", "8")
	t.Setenv("REALITY_SIMILARITY_THRESHOLD", "0.5")
	t.Setenv("REALITY_ANALYZER", "claude")
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	cfg, err := Load("", noDotenv)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, 8, cfg.Tracker.TopK)
	assert.Equal(t, 0.5, cfg.Tracker.SimilarityThreshold)
	assert.Equal(t, AnalyzerClaude, cfg.Analyzer.Provider)
	assert.Equal(t, "test-key", cfg.Analyzer.APIKey)
}

func TestLoad_BadEnvNumber(t *testing.T) {
	t.Setenv("REALITY_TOP_K", "three")
	_, err := Load("", noDotenv)
	assert.ErrorContains(t, err, "REALITY_TOP_K")
}

func TestLoad_Dotenv(t *testing.T) {
	const key = "REALITY_COLLECTION"
	_, wasSet := os.LookupEnv(key)
	if wasSet {
		t.Skipf("%s already set in the environment", key)
	}
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from_dotenv\n"), 0o644))

	cfg, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, "from_dotenv", cfg.Store.Collection)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"bad backend", func(c *Config) { c.Store.Backend = "redis" }, "invalid store backend"},
		{"bad embedder", func(c *Config) { c.Embedder.Provider = "openai" }, "invalid embedder"},
		{"onnx without model", func(c *Config) {
			c.Embedder.Provider = EmbedderONNX
			c.Embedder.Model = ""
		}, "model_path"},
		{"claude without key", func(c *Config) { c.Analyzer.Provider = AnalyzerClaude }, "ANTHROPIC_API_KEY"},
		{"zero top k", func(c *Config) { c.Tracker.TopK = 0 }, "top_k"},
		{"threshold too big", func(c *Config) { c.Tracker.SimilarityThreshold = 1.5 }, "similarity_threshold"},
		{"negative cache", func(c *Config) { c.Embedder.CacheSize = -1 }, "cache size"},
		{"bad timeout", func(c *Config) { c.TurnTimeout = "soon" }, "turn_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestEmbedderConfig_ModelFiles(t *testing.T) {
	e := DefaultConfig().Embedder
	assert.Equal(t, filepath.Join("models", "paraphrase-multilingual-MiniLM-L12-v2", "model.onnx"), e.ONNXModelPath())
	assert.Equal(t, filepath.Join("models", "paraphrase-multilingual-MiniLM-L12-v2", "tokenizer.json"), e.ONNXTokenizerPath())

	e.Model = "all-MiniLM-L6-v2"
	e.ModelDir = "/opt/models"
	assert.Equal(t, "/opt/models/all-MiniLM-L6-v2/model.onnx", e.ONNXModelPath())

	e.ModelPath = "/tmp/custom.onnx"
	assert.Equal(t, "/tmp/custom.onnx", e.ONNXModelPath())
	assert.Equal(t, "/opt/models/all-MiniLM-L6-v2/tokenizer.json", e.ONNXTokenizerPath())

	e.Model = ""
	assert.Empty(t, e.ONNXTokenizerPath())

	cfg := DefaultConfig()
	cfg.Embedder.Provider = EmbedderONNX
	assert.NoError(t, cfg.Validate())
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reality.yaml")
	cfg := DefaultConfig()
	cfg.Tracker.TopK = 9
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path, noDotenv)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.Tracker.TopK)
}
