package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
)

// ArkProvider runs Volcengine Ark models through an eino chain. "ark" selects the
// configured endpoint, "ark/<endpoint>" overrides it per request.
type ArkProvider struct {
	chain compose.Runnable[map[string]any, *schema.Message]
}

// NewArkProvider creates the chat model from cfg and compiles the chain.
func NewArkProvider(ctx context.Context, cfg config.ArkConfig) (*ArkProvider, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return newArkProvider(ctx, chatModel)
}

func newArkProvider(ctx context.Context, chatModel model.BaseChatModel) (*ArkProvider, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("turns", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	return &ArkProvider{chain: runnable}, nil
}

func (p *ArkProvider) Name() string { return "ark" }

func (p *ArkProvider) Stream(ctx context.Context, modelID string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	system, turns := splitExchange(messages)
	input := map[string]any{
		"system": system,
		"turns":  turns,
	}

	var opts []compose.Option
	if endpoint := vendorModel(modelID, p.Name()); endpoint != "" && endpoint != p.Name() {
		opts = append(opts, compose.WithChatModelOption(model.WithModel(endpoint)))
	}

	sr, err := p.chain.Stream(ctx, input, opts...)
	if err != nil {
		return nil, completionError("ark", err, "")
	}
	return sr, nil
}
