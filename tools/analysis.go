package tools

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/becomeliminal/nim-reality/core"
)

// AnalysisToolName is the tool a model must call to report attributes.
const AnalysisToolName = "record_reality_attributes"

// Definition describes a tool offered to a model.
type Definition struct {
	Name        string
	Description string
	InputSchema Schema
}

// Vocabulary is the closed set of tags each attribute may take.
type Vocabulary struct {
	Emotions []string
	Beliefs  []string
	Needs    []string
	Shifts   []string
}

// DefaultVocabulary returns the tag sets the keyword analyzer also produces.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Emotions: []string{core.EmotionHappy, core.EmotionSad, core.EmotionConfused, core.EmotionCurious, core.EmotionNeutral},
		Beliefs:  []string{core.BeliefMaterialist, core.BeliefSpiritual, core.BeliefSkeptic, core.BeliefUnknown},
		Needs:    []string{core.NeedMeaning, core.NeedPractical, core.NeedEmpathy, core.NeedGeneral},
		Shifts:   []string{core.ShiftAttitudeChange, core.ShiftCrisis, core.ShiftAwakening},
	}
}

// AnalysisTool returns the structured-output tool for attribute extraction.
func AnalysisTool(v Vocabulary) Definition {
	schema := ObjectSchema(Schema{
		"emotional_state":  TagProperty("The dominant emotion of the message.", v.Emotions),
		"beliefs":          TagListProperty("Worldviews the message expresses. Use unknown if none.", v.Beliefs),
		"cognitive_need":   TagProperty("What the user needs from the reply.", v.Needs),
		"shift_indicators": TagListProperty("Signs the user's outlook is moving. Empty if none.", v.Shifts),
		"confidence":       RangeProperty("Confidence in the tags.", 0, 1),
	}, "emotional_state", "beliefs", "cognitive_need", "shift_indicators")

	return Definition{
		Name: AnalysisToolName,
		Description: "Record the emotional state, beliefs, cognitive need and outlook shifts " +
			"expressed in the user's message. Only use the listed tags.",
		InputSchema: WithRationale(schema, false),
	}
}

// Analysis is the decoded input of an AnalysisTool call.
type Analysis struct {
	EmotionalState  string   `json:"emotional_state"`
	Beliefs         []string `json:"beliefs"`
	CognitiveNeed   string   `json:"cognitive_need"`
	ShiftIndicators []string `json:"shift_indicators"`
	Confidence      *float64 `json:"confidence,omitempty"`
	Rationale       string   `json:"rationale,omitempty"`
}

// ParseAnalysis decodes tool input.
func ParseAnalysis(raw json.RawMessage) (*Analysis, error) {
	var a Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("decode %s input: %w", AnalysisToolName, err)
	}
	if a.Confidence != nil && (math.IsNaN(*a.Confidence) || *a.Confidence < 0 || *a.Confidence > 1) {
		return nil, fmt.Errorf("confidence %v out of range", *a.Confidence)
	}
	return &a, nil
}

// Attributes keeps only tags from v and fills the rest with defaults.
func (a *Analysis) Attributes(v Vocabulary) core.Attributes {
	attrs := core.Attributes{
		EmotionalState:  pick(a.EmotionalState, v.Emotions),
		Beliefs:         filter(a.Beliefs, v.Beliefs),
		CognitiveNeed:   pick(a.CognitiveNeed, v.Needs),
		ShiftIndicators: filter(a.ShiftIndicators, v.Shifts),
	}
	return attrs.Normalize()
}

func pick(tag string, allowed []string) string {
	for _, a := range allowed {
		if tag == a {
			return tag
		}
	}
	return ""
}

func filter(tags, allowed []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if seen[tag] || pick(tag, allowed) == "" {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
