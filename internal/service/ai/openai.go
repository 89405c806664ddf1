package ai

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"
	goopenai "github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
)

// OpenAIProvider serves OpenAI and OpenAI-compatible gateways.
type OpenAIProvider struct {
	client *goopenai.Client
}

func NewOpenAIProvider(cfg config.OpenAIConfig) *OpenAIProvider {
	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{client: goopenai.NewClientWithConfig(clientCfg)}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Stream(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	req := goopenai.ChatCompletionRequest{
		Model:    vendorModel(model, p.Name()),
		Messages: openAIMessages(messages),
		Stream:   true,
	}

	s, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, openAIError(err)
	}

	return pipe(ctx, func(ctx context.Context, emit emitFunc) error {
		defer s.Close()

		for {
			resp, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return openAIError(err)
			}
			if len(resp.Choices) == 0 {
				continue
			}

			choice := resp.Choices[0]
			if choice.FinishReason != "" {
				emit(finishChunk(choice.Delta.Content, string(choice.FinishReason)))
				return nil
			}
			if choice.Delta.Content == "" {
				continue
			}
			if !emit(textChunk(choice.Delta.Content)) {
				return nil
			}
		}
	}), nil
}

func openAIMessages(messages []*schema.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		if m == nil {
			continue
		}
		out = append(out, goopenai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	return out
}

func openAIError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return completionError("openai", err, apiErr.Message)
	}
	return completionError("openai", err, "")
}
