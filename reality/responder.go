package reality

import "github.com/becomeliminal/nim-reality/core"

// DefaultReply is returned for any emotional state without a canned reply.
const DefaultReply = "I see. Could you tell me a bit more?"

// DefaultReplies maps emotional states to canned replies.
// The neutral state deliberately has no entry and falls back to DefaultReply.
func DefaultReplies() map[string]string {
	return map[string]string{
		core.EmotionHappy:    "It's good to hear you're doing well. What's been bringing you this energy?",
		core.EmotionSad:      "It sounds like things have been hard lately. If you'd like to talk more about it, I'm here.",
		core.EmotionConfused: "Feeling confused can be a sign of growth. What has left you most uncertain?",
		core.EmotionCurious:  "I can sense your eagerness to explore. What has caught your curiosity the most?",
	}
}

// CannedResponder selects a reply from a fixed table.
type CannedResponder struct {
	replies  map[string]string
	fallback string
}

// NewCannedResponder creates a responder over replies. An empty fallback
// means DefaultReply.
func NewCannedResponder(replies map[string]string, fallback string) *CannedResponder {
	if fallback == "" {
		fallback = DefaultReply
	}
	table := make(map[string]string, len(replies))
	for k, v := range replies {
		table[k] = v
	}
	return &CannedResponder{replies: table, fallback: fallback}
}

// NewDefaultResponder creates a responder over DefaultReplies.
func NewDefaultResponder() *CannedResponder {
	return NewCannedResponder(DefaultReplies(), DefaultReply)
}

var _ Responder = (*CannedResponder)(nil)

// Respond implements Responder.
func (r *CannedResponder) Respond(emotionalState string) string {
	if reply, ok := r.replies[emotionalState]; ok {
		return reply
	}
	return r.fallback
}
