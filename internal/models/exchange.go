package models

// ChatRequest is one outbound exchange request. RequestID correlates the
// in-flight request with the reply that answers it, so pairing never relies
// on temporal adjacency alone.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id,omitempty"`
}

// ChatReply is the normalized result of an exchange. Exactly one of Response
// and Err is expected to be set on a well-formed reply, but the controller
// tolerates both: Err takes precedence, and Emergency always escalates
// regardless of the rest of the payload.
type ChatReply struct {
	Response   string  `json:"response"`
	Err        string  `json:"error"`
	Emergency  bool    `json:"emergency"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}
