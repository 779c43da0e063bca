package reality

import (
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/becomeliminal/nim-reality/core"
)

// Metadata keys persisted next to every record.
const (
	MetaOwnerID         = "owner_id"
	MetaTimestamp       = "timestamp"
	MetaEmotionalState  = "emotional_state"
	MetaBeliefs         = "beliefs"
	MetaCognitiveNeed   = "cognitive_need"
	MetaShiftIndicators = "shift_indicators"
	MetaTextSample      = "text_sample"
)

// TextSampleLength is the number of characters kept in MetaTextSample.
const TextSampleLength = 100

// TextSample returns the first TextSampleLength characters of text.
func TextSample(text string) string {
	if utf8.RuneCountInString(text) <= TextSampleLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:TextSampleLength])
}

// EncodeMetadata flattens a record's metadata into the string map stored by
// vector backends. List-valued attributes are JSON array strings.
func EncodeMetadata(ownerID, text string, attrs core.Attributes, createdAt time.Time) (map[string]string, error) {
	attrs = attrs.Normalize()

	beliefs, err := json.Marshal(attrs.Beliefs)
	if err != nil {
		return nil, fmt.Errorf("marshal beliefs: %w", err)
	}
	shifts, err := json.Marshal(attrs.ShiftIndicators)
	if err != nil {
		return nil, fmt.Errorf("marshal shift indicators: %w", err)
	}

	return map[string]string{
		MetaOwnerID:         ownerID,
		MetaTimestamp:       createdAt.UTC().Format(time.RFC3339Nano),
		MetaEmotionalState:  attrs.EmotionalState,
		MetaBeliefs:         string(beliefs),
		MetaCognitiveNeed:   attrs.CognitiveNeed,
		MetaShiftIndicators: string(shifts),
		MetaTextSample:      TextSample(text),
	}, nil
}

// DecodeMetadata restores attributes and the creation time from metadata
// written by EncodeMetadata.
func DecodeMetadata(meta map[string]string) (core.Attributes, time.Time, error) {
	attrs := core.Attributes{
		EmotionalState: meta[MetaEmotionalState],
		CognitiveNeed:  meta[MetaCognitiveNeed],
	}
	if raw := meta[MetaBeliefs]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs.Beliefs); err != nil {
			return core.Attributes{}, time.Time{}, fmt.Errorf("unmarshal beliefs: %w", err)
		}
	}
	if raw := meta[MetaShiftIndicators]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &attrs.ShiftIndicators); err != nil {
			return core.Attributes{}, time.Time{}, fmt.Errorf("unmarshal shift indicators: %w", err)
		}
	}

	var createdAt time.Time
	if raw := meta[MetaTimestamp]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return core.Attributes{}, time.Time{}, fmt.Errorf("parse timestamp: %w", err)
		}
		createdAt = t
	}

	return attrs.Normalize(), createdAt, nil
}
