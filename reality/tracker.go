package reality

import (
	"fmt"
	"sort"
	"strings"

	"github.com/becomeliminal/nim-reality/core"
)

// DefaultSimilarityThreshold is the similarity a turn needs with its nearest
// stored neighbour to count as a continuation.
const DefaultSimilarityThreshold = 0.6

// Tracker decides whether a turn is a new reality. It keeps no state
// between calls.
type Tracker struct {
	threshold float64
}

// NewTracker creates a tracker. The threshold is clamped to [0, 1].
func NewTracker(threshold float64) *Tracker {
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	return &Tracker{threshold: threshold}
}

// Threshold returns the configured similarity threshold.
func (t *Tracker) Threshold() float64 {
	return t.threshold
}

// IsNew applies IsNew with the tracker's threshold.
func (t *Tracker) IsNew(neighbors []Neighbor) bool {
	return IsNew(neighbors, t.threshold)
}

// IsNew reports whether the closest neighbour is too far away to explain the
// current turn. No neighbours means no precedent, which is always new.
// Only neighbors[0] is inspected; a distance equal to 1-threshold is not new.
func IsNew(neighbors []Neighbor, threshold float64) bool {
	if len(neighbors) == 0 {
		return true
	}
	return neighbors[0].Distance > (1 - threshold)
}

// DescribeShift describes how the attributes moved since the previous turn.
func DescribeShift(current core.Attributes, previous *core.Attributes) string {
	if previous == nil {
		return "first interaction"
	}

	var shifts []string
	if current.EmotionalState != previous.EmotionalState {
		shifts = append(shifts, fmt.Sprintf("emotional state changed from %s to %s",
			previous.EmotionalState, current.EmotionalState))
	}

	if added := difference(current.Beliefs, previous.Beliefs); len(added) > 0 {
		shifts = append(shifts, "new beliefs: "+strings.Join(added, ", "))
	}
	if dropped := difference(previous.Beliefs, current.Beliefs); len(dropped) > 0 {
		shifts = append(shifts, "dropped beliefs: "+strings.Join(dropped, ", "))
	}

	if len(shifts) == 0 {
		return "no detectable shift"
	}
	return strings.Join(shifts, " | ")
}

// difference returns the sorted tags in a that are not in b.
func difference(a, b []string) []string {
	seen := make(map[string]bool, len(b))
	for _, s := range b {
		seen[s] = true
	}
	var out []string
	for _, s := range a {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	sort.Strings(out)
	return out
}
