package tools

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/becomeliminal/nim-reality/core"
)

func TestAnalysisTool_Schema(t *testing.T) {
	def := AnalysisTool(DefaultVocabulary())
	assert.Equal(t, AnalysisToolName, def.Name)
	assert.NotEmpty(t, def.Description)

	props, ok := def.InputSchema["properties"].(Schema)
	require.True(t, ok)
	for _, key := range []string{"emotional_state", "beliefs", "cognitive_need", "shift_indicators", "confidence", "rationale"} {
		assert.Contains(t, props, key)
	}

	emotion := props["emotional_state"].(Schema)
	assert.Equal(t, DefaultVocabulary().Emotions, emotion["enum"])

	beliefs := props["beliefs"].(Schema)
	assert.Equal(t, true, beliefs["uniqueItems"])
	assert.Equal(t, DefaultVocabulary().Beliefs, beliefs["items"].(Schema)["enum"])

	// Rationale is optional.
	assert.Equal(t, []string{"emotional_state", "beliefs", "cognitive_need", "shift_indicators"}, def.InputSchema["required"])

	// The schema has to survive the trip to the API.
	_, err := json.Marshal(def.InputSchema)
	require.NoError(t, err)
}

func TestWithRationale_DoesNotMutateInput(t *testing.T) {
	schema := ObjectSchema(Schema{"a": StringProperty("a")}, "a")
	out := WithRationale(schema, true)

	assert.Equal(t, []string{"a", "rationale"}, out["required"])
	assert.Equal(t, []string{"a"}, schema["required"])
	assert.NotContains(t, schema["properties"], "rationale")
}

func TestParseAnalysis(t *testing.T) {
	raw := json.RawMessage(`{
		"emotional_state": "curious",
		"beliefs": ["spiritual", "nihilist", "spiritual"],
		"cognitive_need": "entertainment",
		"shift_indicators": ["awakening"],
		"confidence": 0.8,
		"rationale": "asks about purpose"
	}`)

	a, err := ParseAnalysis(raw)
	require.NoError(t, err)
	assert.Equal(t, "asks about purpose", a.Rationale)

	want := core.Attributes{
		EmotionalState:  core.EmotionCurious,
		Beliefs:         []string{core.BeliefSpiritual},
		CognitiveNeed:   core.NeedGeneral,
		ShiftIndicators: []string{core.ShiftAwakening},
	}
	if diff := cmp.Diff(want, a.Attributes(DefaultVocabulary())); diff != "" {
		t.Errorf("Attributes mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAnalysis_Errors(t *testing.T) {
	_, err := ParseAnalysis(json.RawMessage(`not json`))
	assert.Error(t, err)

	_, err = ParseAnalysis(json.RawMessage(`{"confidence": 3}`))
	assert.Error(t, err)

	a, err := ParseAnalysis(json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.Equal(t, core.DefaultAttributes(), a.Attributes(DefaultVocabulary()))
}
