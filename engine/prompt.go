package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

// DefaultSystemPrompt is used when no prompt file is configured or found.
const DefaultSystemPrompt = `You are a reflective companion. You notice how the user's emotions,
beliefs and needs change from one message to the next, and you answer
briefly and warmly without judging.`

// LoadSystemPrompt reads the prompt at path. A missing file or empty path
// yields DefaultSystemPrompt; any other read error is returned.
func LoadSystemPrompt(path string) (string, error) {
	if path == "" {
		return DefaultSystemPrompt, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultSystemPrompt, nil
	}
	if err != nil {
		return "", fmt.Errorf("read system prompt: %w", err)
	}
	prompt := strings.TrimSpace(string(data))
	if prompt == "" {
		return DefaultSystemPrompt, nil
	}
	return prompt, nil
}
