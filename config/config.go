// Package config loads service configuration from defaults, an optional
// YAML file, a .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendChromem = "chromem"
	BackendSQLite  = "sqlite"
)

// Embedding providers.
const (
	EmbedderMock = "mock"
	EmbedderONNX = "onnx"
)

// Analyzers.
const (
	AnalyzerKeyword = "keyword"
	AnalyzerClaude  = "claude"
)

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Embedder EmbedderConfig `yaml:"embedder"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Tracker  TrackerConfig  `yaml:"tracker"`

	// TurnTimeout bounds a single turn, e.g. "30s". Empty or "0" disables it.
	TurnTimeout string `yaml:"turn_timeout"`

	// SystemPromptPath points at the assistant persona. A missing file
	// falls back to the built-in prompt.
	SystemPromptPath string `yaml:"system_prompt_path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects and configures the vector store.
type StoreConfig struct {
	Backend    string `yaml:"backend"`
	PersistDir string `yaml:"persist_dir"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`

	// SQLitePath defaults to realities.db inside PersistDir.
	SQLitePath string `yaml:"sqlite_path"`
}

// EmbedderConfig selects and configures the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider"`

	// Model names a directory under ModelDir holding model.onnx and
	// tokenizer.json. ModelPath and TokenizerPath override the files.
	Model         string `yaml:"model"`
	ModelDir      string `yaml:"model_dir"`
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`

	SharedLibraryPath string `yaml:"shared_library_path"`
	Dimensions        int    `yaml:"dimensions"`

	// CacheSize is the number of embeddings kept in memory. 0 disables
	// the cache.
	CacheSize int `yaml:"cache_size"`
}

// AnalyzerConfig selects the attribute analyzer.
type AnalyzerConfig struct {
	Provider    string `yaml:"provider"`
	ClaudeModel string `yaml:"claude_model"`

	// APIKey is only read from ANTHROPIC_API_KEY.
	APIKey string `yaml:"-"`
}

// TrackerConfig configures novelty detection.
type TrackerConfig struct {
	TopK                int     `yaml:"top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Store: StoreConfig{
			Backend:    BackendChromem,
			PersistDir: "./chroma_data",
			Collection: "user_realities",
		},
		Embedder: EmbedderConfig{
			Provider:   EmbedderMock,
			Model:      "paraphrase-multilingual-MiniLM-L12-v2",
			ModelDir:   "models",
			Dimensions: 384,
			CacheSize:  10_000,
		},
		Analyzer: AnalyzerConfig{
			Provider:    AnalyzerKeyword,
			ClaudeModel: "claude-sonnet-4-20250514",
		},
		Tracker: TrackerConfig{
			TopK:                3,
			SimilarityThreshold: 0.6,
		},
		TurnTimeout:      "30s",
		SystemPromptPath: "prompts/system_prompt.txt",
	}
}

// Load builds the configuration. An empty path skips the YAML file; a
// path that doesn't exist is an error. Variables from dotenvFiles (default
// ".env") never override variables already set in the environment.
func Load(path string, dotenvFiles ...string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"REALITY_ADDR":                &c.Server.Addr,
		"REALITY_STORE_BACKEND":       &c.Store.Backend,
		"REALITY_PERSIST_DIR":         &c.Store.PersistDir,
		"REALITY_COLLECTION":          &c.Store.Collection,
		"REALITY_SQLITE_PATH":         &c.Store.SQLitePath,
		"REALITY_EMBEDDER":            &c.Embedder.Provider,
		"REALITY_EMBEDDING_MODEL":     &c.Embedder.Model,
		"REALITY_ONNX_MODEL_DIR":      &c.Embedder.ModelDir,
		"REALITY_ONNX_MODEL_PATH":     &c.Embedder.ModelPath,
		"REALITY_ONNX_TOKENIZER_PATH": &c.Embedder.TokenizerPath,
		"REALITY_ONNX_LIBRARY_PATH":   &c.Embedder.SharedLibraryPath,
		"REALITY_ANALYZER":            &c.Analyzer.Provider,
		"REALITY_CLAUDE_MODEL":        &c.Analyzer.ClaudeModel,
		"ANTHROPIC_API_KEY":           &c.Analyzer.APIKey,
		"REALITY_TURN_TIMEOUT":        &c.TurnTimeout,
		"REALITY_SYSTEM_PROMPT_PATH":  &c.SystemPromptPath,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"REALITY_EMBEDDING_DIMENSIONS": &c.Embedder.Dimensions,
		"REALITY_EMBEDDING_CACHE_SIZE": &c.Embedder.CacheSize,
		"REALITY_TOP_K":                &c.Tracker.TopK,
	}
	for key, dst := range ints {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}

	if v := os.Getenv("REALITY_SIMILARITY_THRESHOLD"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid REALITY_SIMILARITY_THRESHOLD: %w", err)
		}
		c.Tracker.SimilarityThreshold = f
	}
	return nil
}

// GetTurnTimeout returns the turn timeout as a duration, 0 for none.
func (c *Config) GetTurnTimeout() time.Duration {
	if c.TurnTimeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.TurnTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// SQLitePath returns the SQLite database file.
func (c *Config) SQLitePath() string {
	if c.Store.SQLitePath != "" {
		return c.Store.SQLitePath
	}
	return filepath.Join(c.Store.PersistDir, "realities.db")
}

// ONNXModelPath returns the ONNX model file, ModelPath if set.
func (e EmbedderConfig) ONNXModelPath() string {
	return e.modelFile(e.ModelPath, "model.onnx")
}

// ONNXTokenizerPath returns the tokenizer.json file, TokenizerPath if set.
func (e EmbedderConfig) ONNXTokenizerPath() string {
	return e.modelFile(e.TokenizerPath, "tokenizer.json")
}

func (e EmbedderConfig) modelFile(explicit, name string) string {
	if explicit != "" {
		return explicit
	}
	if e.Model == "" {
		return ""
	}
	return filepath.Join(e.ModelDir, e.Model, name)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendChromem, BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("invalid store backend: %q (valid: %s, %s)", c.Store.Backend, BackendChromem, BackendSQLite))
	}

	switch c.Embedder.Provider {
	case EmbedderMock:
	case EmbedderONNX:
		if c.Embedder.ONNXModelPath() == "" || c.Embedder.ONNXTokenizerPath() == "" {
			errs = append(errs, errors.New("onnx embedder needs a model name or model_path and tokenizer_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid embedder: %q (valid: %s, %s)", c.Embedder.Provider, EmbedderMock, EmbedderONNX))
	}
	if c.Embedder.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimensions must be positive, got %d", c.Embedder.Dimensions))
	}
	if c.Embedder.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("embedding cache size must not be negative, got %d", c.Embedder.CacheSize))
	}

	switch c.Analyzer.Provider {
	case AnalyzerKeyword:
	case AnalyzerClaude:
		if c.Analyzer.APIKey == "" {
			errs = append(errs, errors.New("claude analyzer needs ANTHROPIC_API_KEY"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid analyzer: %q (valid: %s, %s)", c.Analyzer.Provider, AnalyzerKeyword, AnalyzerClaude))
	}

	if c.Tracker.TopK <= 0 {
		errs = append(errs, fmt.Errorf("top_k must be positive, got %d", c.Tracker.TopK))
	}
	if c.Tracker.SimilarityThreshold < 0 || c.Tracker.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity_threshold must be in [0, 1], got %v", c.Tracker.SimilarityThreshold))
	}
	if c.TurnTimeout != "" {
		if d, err := time.ParseDuration(c.TurnTimeout); err != nil {
			errs = append(errs, fmt.Errorf("invalid turn_timeout: %w", err))
		} else if d < 0 {
			errs = append(errs, fmt.Errorf("turn_timeout must not be negative, got %s", d))
		}
	}

	return errors.Join(errs...)
}
