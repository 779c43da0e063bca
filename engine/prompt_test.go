package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSystemPrompt(t *testing.T) {
	dir := t.TempDir()

	got, err := LoadSystemPrompt("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, got)

	got, err = LoadSystemPrompt(filepath.Join(dir, "missing.txt"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSystemPrompt, got)

	path := filepath.Join(dir, "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("  Be kind.\n"), 0o644))
	got, err = LoadSystemPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "Be kind.", got)

	_, err = LoadSystemPrompt(dir)
	assert.Error(t, err)
}
