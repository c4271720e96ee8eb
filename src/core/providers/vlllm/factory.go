package vlllm

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/utils"
)

// Factory VLLLM工厂函数类型
type Factory func(config *Config, logger *utils.Logger) (*Provider, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册VLLLM提供者工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create 根据配置类型创建并初始化VLLLM提供者实例
func Create(vlllmConfig *configs.VLLMConfig, logger *utils.Logger) (*Provider, error) {
	name := strings.ToLower(vlllmConfig.Type)
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("未知的VLLLM提供者: %s (已注册: %s)",
			vlllmConfig.Type, strings.Join(GetRegisteredProviders(), ", "))
	}

	var timeout time.Duration
	if vlllmConfig.Timeout != "" {
		t, err := time.ParseDuration(vlllmConfig.Timeout)
		if err != nil {
			return nil, fmt.Errorf("无效的VLLLM超时时间 %q: %w", vlllmConfig.Timeout, err)
		}
		timeout = t
	}

	config := &Config{
		Type:        vlllmConfig.Type,
		ModelName:   vlllmConfig.ModelName,
		BaseURL:     vlllmConfig.BaseURL,
		APIKey:      vlllmConfig.APIKey,
		Temperature: vlllmConfig.Temperature,
		MaxTokens:   vlllmConfig.MaxTokens,
		TopP:        vlllmConfig.TopP,
		Timeout:     timeout,
	}

	provider, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("创建VLLLM提供者失败: %w", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化VLLLM提供者失败: %w", err)
	}

	logger.Debug("VLLLM提供者创建成功 name=%s model=%s", name, config.ModelName)
	return provider, nil
}

// GetRegisteredProviders 获取已注册的提供者列表
func GetRegisteredProviders() []string {
	var providers []string
	for name := range factories {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}
