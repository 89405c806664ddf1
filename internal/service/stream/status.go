package stream

// Status is the lifecycle position of a Session.
type Status string

const (
	StatusPending   Status = "pending"
	StatusStreaming Status = "streaming"
	StatusComplete  Status = "complete"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can leave this status.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Update is what a Sink receives after every Advance.
type Update struct {
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"content"`
	Status    Status `json:"status"`
	Final     bool   `json:"final"`
	Err       string `json:"error,omitempty"`
}
