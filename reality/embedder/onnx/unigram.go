package onnx

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// metaspace marks a word boundary in SentencePiece vocabularies.
const metaspace = "▁"

// unkPenalty is subtracted from the lowest piece score to score unknown
// characters, as SentencePiece does.
const unkPenalty = 10.0

// UnigramPiece is one vocabulary entry. Its ID is its position in the
// vocabulary.
type UnigramPiece struct {
	Piece string
	Score float64
}

// UnmarshalJSON decodes the ["piece", score] pairs of tokenizer.json.
func (p *UnigramPiece) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("vocab entry has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.Piece); err != nil {
		return fmt.Errorf("vocab piece: %w", err)
	}
	if err := json.Unmarshal(pair[1], &p.Score); err != nil {
		return fmt.Errorf("vocab score: %w", err)
	}
	return nil
}

type unigramEntry struct {
	id    int64
	score float64
}

// Unigram performs SentencePiece Unigram tokenization: each whitespace
// separated word, prefixed with ▁, is split into the highest scoring
// sequence of vocabulary pieces.
type Unigram struct {
	pieces   map[string]unigramEntry
	maxRunes int
	unkScore float64

	unk, bos, eos int64
}

var _ Tokenizer = (*Unigram)(nil)

// NewUnigram creates a tokenizer over vocab. A negative unkID looks up
// <unk> in the vocabulary.
func NewUnigram(vocab []UnigramPiece, unkID int) *Unigram {
	t := &Unigram{pieces: make(map[string]unigramEntry, len(vocab))}

	minScore := math.Inf(1)
	for i, p := range vocab {
		if _, dup := t.pieces[p.Piece]; dup {
			continue
		}
		t.pieces[p.Piece] = unigramEntry{id: int64(i), score: p.Score}
		if n := utf8.RuneCountInString(p.Piece); n > t.maxRunes {
			t.maxRunes = n
		}
		if p.Score < minScore {
			minScore = p.Score
		}
	}
	if math.IsInf(minScore, 1) {
		minScore = 0
	}
	t.unkScore = minScore - unkPenalty

	special := func(token string, fallback int64) int64 {
		if e, ok := t.pieces[token]; ok {
			return e.id
		}
		return fallback
	}
	// XLM-R layout: <s>=0 <pad>=1 </s>=2 <unk>=3
	t.bos = special("<s>", 0)
	t.eos = special("</s>", 2)
	t.unk = special("<unk>", 3)
	if unkID >= 0 {
		t.unk = int64(unkID)
	}
	return t
}

// Encode converts text to token IDs framed by <s> and </s>, truncated to
// maxLen tokens in total.
func (t *Unigram) Encode(text string, maxLen int) []int64 {
	ids := []int64{t.bos}
	for _, id := range t.Tokenize(text) {
		if len(ids) >= maxLen-1 {
			break
		}
		ids = append(ids, id)
	}
	return append(ids, t.eos)
}

// Tokenize converts text to token IDs without special tokens.
func (t *Unigram) Tokenize(text string) []int64 {
	var ids []int64
	for _, word := range strings.Fields(text) {
		ids = append(ids, t.segment(metaspace+word)...)
	}
	return ids
}

// segment finds the best scoring split of word with a Viterbi pass.
// Runs of unknown characters collapse into one <unk>.
func (t *Unigram) segment(word string) []int64 {
	runes := []rune(word)
	n := len(runes)

	type node struct {
		score float64
		start int
		id    int64
		set   bool
	}
	best := make([]node, n+1)
	best[0] = node{set: true}

	for end := 1; end <= n; end++ {
		from := end - t.maxRunes
		if from < 0 {
			from = 0
		}
		for start := from; start < end; start++ {
			if !best[start].set {
				continue
			}
			e, ok := t.pieces[string(runes[start:end])]
			if !ok {
				continue
			}
			if s := best[start].score + e.score; !best[end].set || s > best[end].score {
				best[end] = node{score: s, start: start, id: e.id, set: true}
			}
		}
		if _, known := t.pieces[string(runes[end-1:end])]; !known && best[end-1].set {
			if s := best[end-1].score + t.unkScore; !best[end].set || s > best[end].score {
				best[end] = node{score: s, start: end - 1, id: t.unk, set: true}
			}
		}
	}

	var rev []int64
	for pos := n; pos > 0; pos = best[pos].start {
		id := best[pos].id
		if id == t.unk && len(rev) > 0 && rev[len(rev)-1] == t.unk {
			continue
		}
		rev = append(rev, id)
	}
	out := make([]int64, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}
