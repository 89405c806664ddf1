package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/med-assistant/backend/internal/service/stream"
)

const pipeCapacity = 16

type emitFunc func(*schema.Message) bool

// pipe runs produce in its own goroutine and exposes what it emits as a stream
// reader. emit returns false once the reader has been closed; produce should stop then.
// A non-nil error from produce is delivered as the last item.
func pipe(ctx context.Context, produce func(ctx context.Context, emit emitFunc) error) *schema.StreamReader[*schema.Message] {
	ctx, cancel := context.WithCancel(ctx)
	sr, sw := schema.Pipe[*schema.Message](pipeCapacity)

	go func() {
		defer cancel()
		defer sw.Close()

		err := produce(ctx, func(msg *schema.Message) bool {
			return !sw.Send(msg, nil)
		})
		if err != nil {
			sw.Send(nil, err)
		}
	}()

	return sr
}

func textChunk(text string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: text}
}

func finishChunk(text, reason string) *schema.Message {
	return &schema.Message{
		Role:         schema.Assistant,
		Content:      text,
		ResponseMeta: &schema.ResponseMeta{FinishReason: reason},
	}
}

func completionError(backend string, err error, message string) error {
	if message == "" {
		message = err.Error()
	}
	return &stream.CompletionError{Message: fmt.Sprintf("%s: %s", backend, message), Err: err}
}

func splitExchange(messages []*schema.Message) (system string, turns []*schema.Message) {
	for _, m := range messages {
		if m == nil {
			continue
		}
		if m.Role == schema.System {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
