package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/med-assistant/backend/internal/config"
)

var (
	ErrUnknownModel       = errors.New("unknown model")
	ErrBackendUnavailable = errors.New("model backend not configured")
)

// Provider streams completions from one vendor.
type Provider interface {
	Name() string
	Stream(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error)
}

// Registry routes model identifiers to the provider of their family.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry holding the given providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// NewRegistryFromConfig registers every backend whose credentials are configured.
// A backend that fails to initialize is logged and skipped.
func NewRegistryFromConfig(ctx context.Context, cfg config.AIConfig) *Registry {
	r := NewRegistry()

	if cfg.Gemini.Enabled() {
		if p, err := NewGeminiProvider(ctx, cfg.Gemini); err != nil {
			log.Printf("[ai] gemini backend disabled: %v", err)
		} else {
			r.Register(p)
		}
	}
	if cfg.Anthropic.Enabled() {
		r.Register(NewAnthropicProvider(cfg.Anthropic))
	}
	if cfg.OpenAI.Enabled() {
		r.Register(NewOpenAIProvider(cfg.OpenAI))
	}
	if cfg.Ollama.Enabled() {
		if p, err := NewOllamaProvider(cfg.Ollama); err != nil {
			log.Printf("[ai] ollama backend disabled: %v", err)
		} else {
			r.Register(p)
		}
	}
	if cfg.Ark.Enabled() {
		if p, err := NewArkProvider(ctx, cfg.Ark); err != nil {
			log.Printf("[ai] ark backend disabled: %v", err)
		} else {
			r.Register(p)
		}
	}

	log.Printf("[ai] registered backends: %s", strings.Join(r.Names(), ", "))
	return r
}

// Register adds or replaces the provider for its family.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Names lists the registered families.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for _, family := range families {
		if _, ok := r.providers[family]; ok {
			names = append(names, family)
		}
	}
	return names
}

// Available reports whether model can be served right now.
func (r *Registry) Available(model string) bool {
	_, ok := r.providers[Family(model)]
	return ok
}

// Stream implements stream.Source.
func (r *Registry) Stream(ctx context.Context, model string, messages []*schema.Message) (*schema.StreamReader[*schema.Message], error) {
	family := Family(model)
	if family == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, model)
	}
	p, ok := r.providers[family]
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ErrBackendUnavailable, family, model)
	}
	return p.Stream(ctx, model, messages)
}

var families = []string{"gemini", "anthropic", "openai", "ollama", "ark"}

// Family maps a model identifier to the backend that serves it, or "" when no
// backend recognizes it.
func Family(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "gemini/"), strings.HasPrefix(m, "gemini-"):
		return "gemini"
	case strings.HasPrefix(m, "anthropic/"), strings.HasPrefix(m, "claude-"):
		return "anthropic"
	case strings.HasPrefix(m, "openai/"), strings.HasPrefix(m, "gpt-"),
		strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "openai"
	case strings.HasPrefix(m, "ollama/"):
		return "ollama"
	case m == "ark", strings.HasPrefix(m, "ark/"):
		return "ark"
	}
	return ""
}

// vendorModel strips the routing prefix, "gemini/gemini-2.0-flash" -> "gemini-2.0-flash".
func vendorModel(model, family string) string {
	model = strings.TrimSpace(model)
	if len(model) > len(family) && strings.EqualFold(model[:len(family)+1], family+"/") {
		return model[len(family)+1:]
	}
	return model
}
