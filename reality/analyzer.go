package reality

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/becomeliminal/nim-reality/core"
)

// Rule tags a text when any of its keywords occurs in it.
type Rule struct {
	Tag string

	// Keywords match anywhere in the text, including inside words.
	Keywords []string

	// Words match only where not preceded or followed by a letter or
	// digit, so "how" misses "show" and "happy" misses "unhappy".
	Words []string
}

// matches reports whether any keyword or word occurs in text.
// Matching is case- and form-sensitive.
func (r Rule) matches(text string) bool {
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	for _, w := range r.Words {
		if w != "" && containsWord(text, w) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !isWordRune(before) && !isWordRune(after) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return false
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Rules holds the ordered keyword tables for the four attribute categories.
// Order matters: for single-valued categories the first matching rule wins.
type Rules struct {
	Emotions []Rule
	Beliefs  []Rule
	Needs    []Rule
	Shifts   []Rule
}

// DefaultRules returns the built-in keyword tables: Persian keywords
// matched as substrings, and English equivalents matched as whole words.
//
// These are placeholder heuristics; swap the Analyzer for a real classifier
// rather than growing the lists.
func DefaultRules() Rules {
	return Rules{
		Emotions: []Rule{
			{Tag: core.EmotionHappy, Keywords: []string{"خوشحال", "عالی", "خوب"}, Words: []string{"happy", "great", "good"}},
			{Tag: core.EmotionSad, Keywords: []string{"غمگین", "ناراحت", "افسرده"}, Words: []string{"sad", "unhappy", "upset", "depressed"}},
			{Tag: core.EmotionConfused, Keywords: []string{"نمی‌دانم", "مردد", "شک"}, Words: []string{"don't know", "unsure", "doubt"}},
			{Tag: core.EmotionCurious, Keywords: []string{"کنجکاو", "می‌خواهم", "علاقه"}, Words: []string{"curious", "want to", "interested"}},
		},
		Beliefs: []Rule{
			{Tag: core.BeliefMaterialist, Keywords: []string{"پول", "ثروت", "مادی"}, Words: []string{"money", "wealth", "material"}},
			{Tag: core.BeliefSpiritual, Keywords: []string{"روح", "معنا", "هدف"}, Words: []string{"soul", "meaning", "purpose"}},
			{Tag: core.BeliefSkeptic, Keywords: []string{"چرا", "شک", "مطمئن نیستم"}, Words: []string{"why", "doubt", "not sure"}},
		},
		Needs: []Rule{
			{Tag: core.NeedMeaning, Keywords: []string{"چرا"}, Words: []string{"why"}},
			{Tag: core.NeedPractical, Keywords: []string{"چطور"}, Words: []string{"how"}},
			{Tag: core.NeedEmpathy, Keywords: []string{"احساس"}, Words: []string{"feel"}},
		},
		Shifts: []Rule{
			{Tag: core.ShiftAttitudeChange, Keywords: []string{"قبلاً فکر می‌کردم", "عوض شده", "دیگر"}, Words: []string{"used to think", "has changed", "anymore"}},
			{Tag: core.ShiftCrisis, Keywords: []string{"بی‌معنا", "پوچ", "چرا"}, Words: []string{"meaningless", "pointless", "why"}},
			{Tag: core.ShiftAwakening, Keywords: []string{"تازه فهمیدم", "الان می‌بینم"}, Words: []string{"just realized", "now I see"}},
		},
	}
}

// KeywordAnalyzer classifies text by keyword matching against Rules.
// It is a pure function of the text and its tables.
type KeywordAnalyzer struct {
	rules Rules
}

// NewKeywordAnalyzer creates an analyzer over rules.
func NewKeywordAnalyzer(rules Rules) *KeywordAnalyzer {
	return &KeywordAnalyzer{rules: rules}
}

// NewDefaultAnalyzer creates an analyzer over DefaultRules.
func NewDefaultAnalyzer() *KeywordAnalyzer {
	return NewKeywordAnalyzer(DefaultRules())
}

var _ Analyzer = (*KeywordAnalyzer)(nil)

// Analyze implements Analyzer.
func (a *KeywordAnalyzer) Analyze(_ context.Context, text string) core.Attributes {
	attrs := core.Attributes{
		EmotionalState:  firstMatch(a.rules.Emotions, text, core.EmotionNeutral),
		Beliefs:         allMatches(a.rules.Beliefs, text),
		CognitiveNeed:   firstMatch(a.rules.Needs, text, core.NeedGeneral),
		ShiftIndicators: allMatches(a.rules.Shifts, text),
	}
	if len(attrs.Beliefs) == 0 {
		attrs.Beliefs = []string{core.BeliefUnknown}
	}
	return attrs
}

func firstMatch(rules []Rule, text, fallback string) string {
	for _, r := range rules {
		if r.matches(text) {
			return r.Tag
		}
	}
	return fallback
}

func allMatches(rules []Rule, text string) []string {
	tags := []string{}
	for _, r := range rules {
		if r.matches(text) {
			tags = append(tags, r.Tag)
		}
	}
	return tags
}
