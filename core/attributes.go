package core

// Emotional state tags.
const (
	EmotionHappy    = "happy"
	EmotionSad      = "sad"
	EmotionConfused = "confused"
	EmotionCurious  = "curious"
	EmotionNeutral  = "neutral"
)

// Belief tags.
const (
	BeliefMaterialist = "materialist"
	BeliefSpiritual   = "spiritual"
	BeliefSkeptic     = "skeptic"
	BeliefUnknown     = "unknown"
)

// Cognitive need tags.
const (
	NeedMeaning   = "meaning-seeking"
	NeedPractical = "practical-guidance"
	NeedEmpathy   = "empathy"
	NeedGeneral   = "general-information"
)

// Shift indicator tags.
const (
	ShiftAttitudeChange = "attitude-change"
	ShiftCrisis         = "crisis"
	ShiftAwakening      = "awakening"
)

// Attributes are the coarse tags extracted from one utterance.
//
// A well-formed Attributes value always carries exactly one emotional state,
// exactly one cognitive need, at least one belief and a non-nil (possibly
// empty) list of shift indicators. Use Normalize to enforce that shape on
// values that came from an untrusted classifier.
type Attributes struct {
	EmotionalState  string   `json:"emotional_state"`
	Beliefs         []string `json:"beliefs"`
	CognitiveNeed   string   `json:"cognitive_need"`
	ShiftIndicators []string `json:"shift_indicators"`
}

// DefaultAttributes returns the attributes of an utterance nothing matched.
func DefaultAttributes() Attributes {
	return Attributes{
		EmotionalState:  EmotionNeutral,
		Beliefs:         []string{BeliefUnknown},
		CognitiveNeed:   NeedGeneral,
		ShiftIndicators: []string{},
	}
}

// Normalize fills empty fields with their defaults.
func (a Attributes) Normalize() Attributes {
	if a.EmotionalState == "" {
		a.EmotionalState = EmotionNeutral
	}
	if len(a.Beliefs) == 0 {
		a.Beliefs = []string{BeliefUnknown}
	}
	if a.CognitiveNeed == "" {
		a.CognitiveNeed = NeedGeneral
	}
	if a.ShiftIndicators == nil {
		a.ShiftIndicators = []string{}
	}
	return a
}

// Clone returns a deep copy so callers can't alias the tag slices.
func (a Attributes) Clone() Attributes {
	out := a
	out.Beliefs = append([]string(nil), a.Beliefs...)
	out.ShiftIndicators = append([]string{}, a.ShiftIndicators...)
	return out
}
