package reality

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/becomeliminal/nim-reality/core"
)

func TestKeywordAnalyzer_Analyze(t *testing.T) {
	tests := []struct {
		name string
		text string
		want core.Attributes
	}{
		{
			name: "nothing matches",
			text: "the weather report said rain",
			want: core.DefaultAttributes(),
		},
		{
			name: "persian happiness",
			text: "امروز خیلی خوشحالم",
			want: core.Attributes{
				EmotionalState:  core.EmotionHappy,
				Beliefs:         []string{core.BeliefUnknown},
				CognitiveNeed:   core.NeedGeneral,
				ShiftIndicators: []string{},
			},
		},
		{
			name: "confusion with a why",
			text: "I don't know why any of this matters",
			want: core.Attributes{
				EmotionalState:  core.EmotionConfused,
				Beliefs:         []string{core.BeliefSkeptic},
				CognitiveNeed:   core.NeedMeaning,
				ShiftIndicators: []string{core.ShiftCrisis},
			},
		},
		{
			name: "several beliefs keep table order",
			text: "is money worth more than the soul",
			want: core.Attributes{
				EmotionalState:  core.EmotionNeutral,
				Beliefs:         []string{core.BeliefMaterialist, core.BeliefSpiritual},
				CognitiveNeed:   core.NeedGeneral,
				ShiftIndicators: []string{},
			},
		},
		{
			name: "first emotion wins",
			text: "I am happy but also sad",
			want: core.Attributes{
				EmotionalState:  core.EmotionHappy,
				Beliefs:         []string{core.BeliefUnknown},
				CognitiveNeed:   core.NeedGeneral,
				ShiftIndicators: []string{},
			},
		},
		{
			name: "attitude change and awakening",
			text: "I used to think so but now I see it differently",
			want: core.Attributes{
				EmotionalState:  core.EmotionNeutral,
				Beliefs:         []string{core.BeliefUnknown},
				CognitiveNeed:   core.NeedGeneral,
				ShiftIndicators: []string{core.ShiftAttitudeChange, core.ShiftAwakening},
			},
		},
		{
			name: "english words need word boundaries",
			text: "goodbye, show me however you like",
			want: core.DefaultAttributes(),
		},
		{
			name: "unhappy is sad",
			text: "I am unhappy",
			want: core.Attributes{
				EmotionalState:  core.EmotionSad,
				Beliefs:         []string{core.BeliefUnknown},
				CognitiveNeed:   core.NeedGeneral,
				ShiftIndicators: []string{},
			},
		},
		{
			name: "word at start with punctuation",
			text: "how? I want to, truly",
			want: core.Attributes{
				EmotionalState:  core.EmotionCurious,
				Beliefs:         []string{core.BeliefUnknown},
				CognitiveNeed:   core.NeedPractical,
				ShiftIndicators: []string{},
			},
		},
		{
			name: "matching is case sensitive",
			text: "HAPPY",
			want: core.DefaultAttributes(),
		},
	}

	a := NewDefaultAnalyzer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.Analyze(context.Background(), tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Analyze(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestKeywordAnalyzer_CustomRules(t *testing.T) {
	a := NewKeywordAnalyzer(Rules{
		Emotions: []Rule{{Tag: "calm", Keywords: []string{"", "breathe"}}},
	})

	got := a.Analyze(context.Background(), "just breathe")
	if got.EmotionalState != "calm" {
		t.Errorf("EmotionalState = %q, want calm", got.EmotionalState)
	}

	// An empty keyword never matches.
	got = a.Analyze(context.Background(), "anything")
	if got.EmotionalState != core.EmotionNeutral {
		t.Errorf("EmotionalState = %q, want %q", got.EmotionalState, core.EmotionNeutral)
	}
	if got.ShiftIndicators == nil {
		t.Error("ShiftIndicators should be empty, not nil")
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, word string
		want       bool
	}{
		{"how", "how", true},
		{"show", "how", false},
		{"showhow how", "how", true},
		{"(happy)", "happy", true},
		{"happy2", "happy", false},
		{"I don't know", "don't know", true},
		{"شادhow", "how", false},
		{"", "how", false},
	}
	for _, tt := range tests {
		if got := containsWord(tt.text, tt.word); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.text, tt.word, got, tt.want)
		}
	}
}
