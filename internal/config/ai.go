package config

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// AIConfig 描述各个大模型后端的凭证。未配置凭证的后端不会被注册。
type AIConfig struct {
	Ark       ArkConfig
	OpenAI    OpenAIConfig
	Anthropic AnthropicConfig
	Gemini    GeminiConfig
	Ollama    OllamaConfig
}

// ArkConfig 描述火山方舟模型配置。
type ArkConfig struct {
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// OpenAIConfig 同样适用于兼容 OpenAI 协议的网关。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	MaxTokens int
}

type GeminiConfig struct {
	APIKey  string
	BaseURL string
}

type OllamaConfig struct {
	Host string
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

func (c OpenAIConfig) Enabled() bool    { return c.APIKey != "" }
func (c AnthropicConfig) Enabled() bool { return c.APIKey != "" }
func (c GeminiConfig) Enabled() bool    { return c.APIKey != "" }
func (c OllamaConfig) Enabled() bool    { return c.Host != "" }

// NewChatModel 使用配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(src source) (AIConfig, error) {
	temperature, err := src.parseOptionalFloat("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := src.parseOptionalFloat("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := src.parseOptionalInt("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	anthropicMax := 4096
	if override, err := src.parseOptionalInt("ANTHROPIC_MAX_TOKENS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		anthropicMax = *override
	}

	return AIConfig{
		Ark: ArkConfig{
			APIKey:      src.get("ARK_API_KEY"),
			AccessKey:   src.get("ARK_ACCESS_KEY"),
			SecretKey:   src.get("ARK_SECRET_KEY"),
			Model:       src.get("ARK_MODEL"),
			BaseURL:     src.getOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:      src.getOrDefault("ARK_REGION", "cn-beijing"),
			Temperature: temperature,
			TopP:        topP,
			MaxTokens:   maxTokens,
		},
		OpenAI: OpenAIConfig{
			APIKey:  src.get("OPENAI_API_KEY"),
			BaseURL: src.get("OPENAI_BASE_URL"),
		},
		Anthropic: AnthropicConfig{
			APIKey:    src.get("ANTHROPIC_API_KEY"),
			BaseURL:   src.get("ANTHROPIC_BASE_URL"),
			MaxTokens: anthropicMax,
		},
		Gemini: GeminiConfig{
			APIKey:  src.get("GEMINI_API_KEY"),
			BaseURL: src.get("GEMINI_BASE_URL"),
		},
		Ollama: OllamaConfig{
			Host: src.get("OLLAMA_HOST"),
		},
	}, nil
}
