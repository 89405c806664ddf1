package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
)

var errReaderClosed = errors.New("stream reader closed")

// OllamaProvider serves models from a local or remote Ollama server.
type OllamaProvider struct {
	client *api.Client
}

func NewOllamaProvider(cfg config.OllamaConfig) (*OllamaProvider, error) {
	u, err := url.Parse(cfg.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", cfg.Host, err)
	}
	return &OllamaProvider{client: api.NewClient(u, &http.Client{})}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

func (p *OllamaProvider) Stream(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	msgs := make([]api.Message, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		msgs = append(msgs, api.Message{Role: string(m.Role), Content: m.Content})
	}

	streaming := true
	req := &api.ChatRequest{
		Model:    vendorModel(model, p.Name()),
		Messages: msgs,
		Stream:   &streaming,
	}

	return pipe(ctx, func(ctx context.Context, emit emitFunc) error {
		err := p.client.Chat(ctx, req, func(res api.ChatResponse) error {
			if res.Done {
				reason := res.DoneReason
				if reason == "" {
					reason = "stop"
				}
				emit(finishChunk(res.Message.Content, reason))
				return nil
			}
			if res.Message.Content == "" {
				return nil
			}
			if !emit(textChunk(res.Message.Content)) {
				return errReaderClosed
			}
			return nil
		})
		if err != nil && !errors.Is(err, errReaderClosed) {
			return completionError("ollama", err, "")
		}
		return nil
	}), nil
}
