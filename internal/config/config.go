package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Chat   ChatConfig
}

// NewViper 返回绑定了环境变量的 viper 实例，CLI 可以在其上继续绑定命令行参数。
func NewViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	// 兼容旧的 Model 环境变量。
	_ = v.BindEnv("ARK_MODEL", "ARK_MODEL", "Model")
	return v
}

// Load 从环境变量（以及可选的 MEDASSIST_CONFIG 配置文件）加载配置。
func Load() (*Config, error) {
	return Read(NewViper())
}

// Read 先读取 MEDASSIST_CONFIG 指向的配置文件（如有），再解析配置。
func Read(v *viper.Viper) (*Config, error) {
	if path := strings.TrimSpace(v.GetString("MEDASSIST_CONFIG")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}
	return LoadFrom(v)
}

// LoadFrom 从给定的 viper 实例解析配置。
func LoadFrom(v *viper.Viper) (*Config, error) {
	src := source{v: v}

	server, err := loadServerConfig(src)
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(src)
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig(src)
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Chat: chat}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig(src source) (ServerConfig, error) {
	port := src.get("PORT")
	if port == "" {
		port = "8080"
	}

	shutdown, err := src.parseOptionalInt("SHUTDOWN_TIMEOUT")
	if err != nil {
		return ServerConfig{}, err
	}
	timeout := 10 * time.Second
	if shutdown != nil && *shutdown > 0 {
		timeout = time.Duration(*shutdown) * time.Second
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, ShutdownTimeout: timeout}, nil
	}

	return ServerConfig{Addr: ":" + port, ShutdownTimeout: timeout}, nil
}

// ChatConfig 描述默认模型、默认提示词与流式会话的时限。
type ChatConfig struct {
	DefaultModel  string
	DefaultPrompt string
	PromptsFile   string
	StreamTimeout time.Duration
	RenderHTML    bool
}

func loadChatConfig(src source) (ChatConfig, error) {
	timeout, err := src.parseOptionalInt("STREAM_TIMEOUT")
	if err != nil {
		return ChatConfig{}, err
	}
	streamTimeout := 300 * time.Second
	if timeout != nil && *timeout > 0 {
		streamTimeout = time.Duration(*timeout) * time.Second
	}

	renderHTML, err := src.parseBool("RENDER_HTML", true)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		DefaultModel:  src.getOrDefault("DEFAULT_MODEL", "gemini/gemini-2.0-flash"),
		DefaultPrompt: src.getOrDefault("DEFAULT_PROMPT", "prompt1"),
		PromptsFile:   src.get("PROMPTS_FILE"),
		StreamTimeout: streamTimeout,
		RenderHTML:    renderHTML,
	}, nil
}
