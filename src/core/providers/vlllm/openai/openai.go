package openai

import (
	"ocr-server-go/src/core/providers/vlllm"
	"ocr-server-go/src/core/utils"
)

// NewProvider 创建OpenAI兼容接口的VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (*vlllm.Provider, error) {
	provider, err := vlllm.NewProvider(config, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("OpenAI VLLLM Provider创建成功 model=%s url=%s", config.ModelName, config.BaseURL)
	return provider, nil
}

func init() {
	vlllm.Register("openai", NewProvider)
}
