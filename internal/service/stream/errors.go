package stream

import (
	"errors"
	"strings"
)

var (
	ErrEmptyMessage     = errors.New("message is required")
	ErrMalformedRequest = errors.New("request must hold one system and one user message")
	ErrSessionClosed    = errors.New("stream session closed")
)

// ErrorPrefix marks failure text shown in place of an answer.
const ErrorPrefix = "Error: "

// CompletionError is a failure raised by a completion source. Message is safe to show
// to the user.
type CompletionError struct {
	Message string
	Err     error
}

// NewCompletionError wraps err unless it already carries a CompletionError.
func NewCompletionError(err error) *CompletionError {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce
	}
	return &CompletionError{Message: err.Error(), Err: err}
}

func (e *CompletionError) Error() string {
	return e.Message
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// DisplayError formats a failure message for the transcript.
func DisplayError(msg string) string {
	if strings.HasPrefix(msg, ErrorPrefix) {
		return msg
	}
	return ErrorPrefix + msg
}
