package chat

import "time"

// Role tags who authored a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Greeting opens every new chat as its first assistant turn.
const Greeting = "Hello! I'm your medical AI assistant. How can I help you today?"

// Turn is one entry of the visible transcript. User turns are fixed at creation,
// assistant turns grow while their stream session is running.
type Turn struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Model     string    `json:"model,omitempty"`
	PromptID  string    `json:"promptId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
