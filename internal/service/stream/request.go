package stream

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Request is the outbound exchange of a session: one system message, one user
// message and an opaque model identifier.
type Request struct {
	Model    string
	Messages []*schema.Message
}

// NewRequest builds the two-message exchange sent for every user submission.
func NewRequest(model, systemPrompt, userText string) Request {
	return Request{
		Model: model,
		Messages: []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(userText),
		},
	}
}

// SystemText returns the system prompt of the exchange.
func (r Request) SystemText() string {
	if len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[0].Content
}

// UserText returns the user message of the exchange.
func (r Request) UserText() string {
	if len(r.Messages) < 2 {
		return ""
	}
	return r.Messages[1].Content
}

// Validate checks the shape of the exchange and rejects blank user input.
func (r Request) Validate() error {
	if len(r.Messages) != 2 || r.Messages[0] == nil || r.Messages[1] == nil {
		return ErrMalformedRequest
	}
	if r.Messages[0].Role != schema.System || r.Messages[1].Role != schema.User {
		return ErrMalformedRequest
	}
	if strings.TrimSpace(r.Messages[1].Content) == "" {
		return ErrEmptyMessage
	}
	return nil
}

func (r Request) clone() Request {
	msgs := make([]*schema.Message, len(r.Messages))
	for i, m := range r.Messages {
		cp := *m
		msgs[i] = &cp
	}
	return Request{Model: r.Model, Messages: msgs}
}
