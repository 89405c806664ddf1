package ai

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
)

// AnthropicProvider serves Claude models through the Messages streaming API.
type AnthropicProvider struct {
	client    anthropic.Client
	maxTokens int64
}

func NewAnthropicProvider(cfg config.AnthropicConfig) *AnthropicProvider {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &AnthropicProvider{
		client:    anthropic.NewClient(opts...),
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Stream(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	system, turns := splitExchange(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(vendorModel(model, p.Name())),
		MaxTokens: p.maxTokens,
		Messages:  anthropicMessages(turns),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return pipe(ctx, func(ctx context.Context, emit emitFunc) error {
		s := p.client.Messages.NewStreaming(ctx, params)
		defer s.Close()

		for s.Next() {
			ev := s.Current()
			switch ev.Type {
			case "content_block_delta":
				if ev.Delta.Text == "" {
					continue
				}
				if !emit(textChunk(ev.Delta.Text)) {
					return nil
				}
			case "message_delta":
				if ev.Delta.StopReason != "" {
					emit(finishChunk("", string(ev.Delta.StopReason)))
					return nil
				}
			case "message_stop":
				return nil
			}
		}
		if err := s.Err(); err != nil {
			return completionError("anthropic", err, "")
		}
		return nil
	}), nil
}

func anthropicMessages(turns []*schema.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(turns))
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == schema.Assistant {
			out = append(out, anthropic.NewAssistantMessage(block))
			continue
		}
		out = append(out, anthropic.NewUserMessage(block))
	}
	return out
}
