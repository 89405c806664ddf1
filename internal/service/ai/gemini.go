package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
)

// GeminiProvider serves Gemini models through the Gemini API backend.
type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, cfg config.GeminiConfig) (*GeminiProvider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Stream(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	system, turns := splitExchange(messages)

	var genCfg *genai.GenerateContentConfig
	if system != "" {
		genCfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	contents := geminiContents(turns)
	name := vendorModel(model, p.Name())

	return pipe(ctx, func(ctx context.Context, emit emitFunc) error {
		for resp, err := range p.client.Models.GenerateContentStream(ctx, name, contents, genCfg) {
			if err != nil {
				return completionError("gemini", err, "")
			}
			if resp == nil {
				continue
			}

			text := resp.Text()
			var reason genai.FinishReason
			if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
				reason = resp.Candidates[0].FinishReason
			}

			if reason != "" && reason != genai.FinishReasonUnspecified {
				emit(finishChunk(text, string(reason)))
				return nil
			}
			if text == "" {
				continue
			}
			if !emit(textChunk(text)) {
				return nil
			}
		}
		return nil
	}), nil
}

func geminiContents(turns []*schema.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == schema.Assistant {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Content, role))
	}
	return out
}
