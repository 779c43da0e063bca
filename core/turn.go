package core

// TurnRequest is the input of one interactive turn.
type TurnRequest struct {
	// UserID owns the turn. Records are stored and retrieved under this key.
	UserID string `json:"user_id"`

	// InputText is the raw user utterance.
	InputText string `json:"input_text"`
}

// SimilarReality is a previously stored utterance close to the current one.
type SimilarReality struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Distance   float64 `json:"distance"`
	Similarity float64 `json:"similarity"`
}

// TurnResponse is the output of one interactive turn.
type TurnResponse struct {
	ReplyText          string           `json:"reply_text"`
	IsNewReality       bool             `json:"is_new_reality"`
	DetectedAttributes Attributes       `json:"detected_attributes"`
	Similar            []SimilarReality `json:"similar,omitempty"`
	RecordID           string           `json:"record_id,omitempty"`
	Shift              string           `json:"shift,omitempty"`
}
