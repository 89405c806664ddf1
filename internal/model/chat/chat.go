package chat

import "time"

// Chat captures a transient anonymous conversation.
type Chat struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}
