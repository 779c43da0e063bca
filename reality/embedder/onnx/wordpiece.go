package onnx

import (
	"strings"
	"unicode"
)

// Special token IDs of the standard BERT vocabulary, used when a
// vocabulary doesn't list them.
const (
	unkToken = 100 // [UNK]
	clsToken = 101 // [CLS]
	sepToken = 102 // [SEP]
)

// WordPiece performs BERT WordPiece tokenization.
type WordPiece struct {
	vocab     map[string]int
	lowercase bool

	unk, cls, sep int64
}

var _ Tokenizer = (*WordPiece)(nil)

// NewWordPiece creates a tokenizer over vocab.
func NewWordPiece(vocab map[string]int, lowercase bool) *WordPiece {
	special := func(token string, fallback int64) int64 {
		if id, ok := vocab[token]; ok {
			return int64(id)
		}
		return fallback
	}
	return &WordPiece{
		vocab:     vocab,
		lowercase: lowercase,
		unk:       special("[UNK]", unkToken),
		cls:       special("[CLS]", clsToken),
		sep:       special("[SEP]", sepToken),
	}
}

// Encode converts text to token IDs framed by [CLS] and [SEP], truncated
// to maxLen tokens in total.
func (t *WordPiece) Encode(text string, maxLen int) []int64 {
	ids := []int64{t.cls}
	for _, id := range t.Tokenize(text) {
		if len(ids) >= maxLen-1 {
			break
		}
		ids = append(ids, id)
	}
	return append(ids, t.sep)
}

// Tokenize converts text to token IDs without special tokens.
func (t *WordPiece) Tokenize(text string) []int64 {
	if t.lowercase {
		text = strings.ToLower(text)
	}

	var tokens []int64
	for _, word := range splitWords(text) {
		if id, ok := t.vocab[word]; ok {
			tokens = append(tokens, int64(id))
			continue
		}
		for _, piece := range t.wordPieces(word) {
			if id, ok := t.vocab[piece]; ok {
				tokens = append(tokens, int64(id))
			} else {
				tokens = append(tokens, t.unk)
			}
		}
	}
	return tokens
}

// splitWords splits on whitespace and isolates punctuation, as BERT's
// basic tokenizer does.
func splitWords(text string) []string {
	var (
		words []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			words = append(words, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return words
}

// wordPieces greedily splits word into the longest known prefixes.
// A word with an unknown remainder becomes a single [UNK].
func (t *WordPiece) wordPieces(word string) []string {
	runes := []rune(word)
	var pieces []string
	for start := 0; start < len(runes); {
		end := len(runes)
		found := ""
		for end > start {
			sub := string(runes[start:end])
			if start > 0 {
				sub = "##" + sub
			}
			if _, ok := t.vocab[sub]; ok {
				found = sub
				break
			}
			end--
		}
		if found == "" {
			return []string{"[UNK]"}
		}
		pieces = append(pieces, found)
		start = end
	}
	return pieces
}
