package main

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/becomeliminal/nim-reality/config"
	"github.com/becomeliminal/nim-reality/engine"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.Backend = backend
	cfg.Store.PersistDir = filepath.Join(t.TempDir(), "data")
	cfg.Embedder.Dimensions = 64
	cfg.SystemPromptPath = ""
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildApp_Backends(t *testing.T) {
	for _, backend := range []string{config.BackendChromem, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			a, err := buildApp(testConfig(t, backend), zaptest.NewLogger(t))
			require.NoError(t, err)
			defer a.Close()

			ctx := context.Background()
			out, err := a.engine.Run(ctx, &engine.Input{UserID: "u1", Text: "I feel good today"})
			require.NoError(t, err)
			assert.True(t, out.IsNewReality)

			out, err = a.engine.Run(ctx, &engine.Input{UserID: "u1", Text: "I feel good today"})
			require.NoError(t, err)
			assert.False(t, out.IsNewReality)

			history, err := a.engine.Memory().History(ctx, "u1", 0)
			require.NoError(t, err)
			assert.Len(t, history, 2)
			assert.Equal(t, engine.DefaultSystemPrompt, a.engine.SystemPrompt())
		})
	}
}

func TestBuildApp_ONNXWithoutTag(t *testing.T) {
	cfg := testConfig(t, config.BackendChromem)
	cfg.Embedder.Provider = config.EmbedderONNX
	cfg.Embedder.ModelPath = "model.onnx"
	cfg.Embedder.TokenizerPath = "tokenizer.json"

	_, err := buildApp(cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}

func TestRunChat(t *testing.T) {
	a, err := buildApp(testConfig(t, config.BackendChromem), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()

	in := strings.NewReader("I feel good today\n\nI feel good today\nexit\nnever read\n")
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), a.engine, a.sessions, "alice", in, &out))

	got := out.String()
	assert.Contains(t, got, "Chatting as alice")
	assert.Contains(t, got, "[new reality] emotion=happy")
	assert.Contains(t, got, "[continuation] emotion=happy")
	assert.Contains(t, got, "first interaction")
	assert.Contains(t, got, "2 realities")
	assert.NotContains(t, got, "never read")
	assert.Equal(t, 0, a.sessions.Len())

	var hist bytes.Buffer
	records, err := a.engine.Memory().History(context.Background(), "alice", 0)
	require.NoError(t, err)
	require.NoError(t, printHistory(&hist, records, false))
	assert.Equal(t, 2, strings.Count(hist.String(), "I feel good today"))

	hist.Reset()
	require.NoError(t, printHistory(&hist, nil, false))
	assert.Equal(t, "No realities stored.\n", hist.String())
}

func TestRunServer_Shutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx, "127.0.0.1:0", http.NotFoundHandler(), zaptest.NewLogger(t))
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRootCmd_HistoryRequiresUser(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"history"})
	root.SetOut(&bytes.Buffer{})
	err := root.Execute()
	assert.ErrorContains(t, err, "--user is required")
}
