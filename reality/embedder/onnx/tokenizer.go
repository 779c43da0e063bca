package onnx

import (
	"encoding/json"
	"fmt"
	"os"
)

// Tokenizer turns text into model input IDs framed by the model's special
// tokens.
type Tokenizer interface {
	// Encode returns at most maxLen IDs, special tokens included.
	Encode(text string, maxLen int) []int64
}

// LoadTokenizer reads a HuggingFace tokenizer.json. WordPiece (BERT,
// all-MiniLM) and Unigram (XLM-R, multilingual MiniLM) models are
// supported.
func LoadTokenizer(path string) (Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}

	var tok struct {
		Normalizer *struct {
			Lowercase *bool `json:"lowercase"`
		} `json:"normalizer"`
		Model struct {
			Type  string          `json:"type"`
			UnkID *int            `json:"unk_id"`
			Vocab json.RawMessage `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("parse tokenizer: %w", err)
	}

	switch tok.Model.Type {
	case "WordPiece", "":
		var vocab map[string]int
		if err := json.Unmarshal(tok.Model.Vocab, &vocab); err != nil {
			return nil, fmt.Errorf("parse WordPiece vocab: %w", err)
		}
		if len(vocab) == 0 {
			return nil, fmt.Errorf("tokenizer %s has an empty vocabulary", path)
		}
		lowercase := true
		if tok.Normalizer != nil && tok.Normalizer.Lowercase != nil {
			lowercase = *tok.Normalizer.Lowercase
		}
		return NewWordPiece(vocab, lowercase), nil

	case "Unigram":
		var vocab []UnigramPiece
		if err := json.Unmarshal(tok.Model.Vocab, &vocab); err != nil {
			return nil, fmt.Errorf("parse Unigram vocab: %w", err)
		}
		if len(vocab) == 0 {
			return nil, fmt.Errorf("tokenizer %s has an empty vocabulary", path)
		}
		unkID := -1
		if tok.Model.UnkID != nil {
			unkID = *tok.Model.UnkID
		}
		return NewUnigram(vocab, unkID), nil

	default:
		return nil, fmt.Errorf("tokenizer model type %q is not supported", tok.Model.Type)
	}
}
