package ollama

import (
	"ocr-server-go/src/core/providers/vlllm"
	"ocr-server-go/src/core/utils"
)

// NewProvider 创建Ollama VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (*vlllm.Provider, error) {
	// Ollama类型只需要确保使用支持视觉的模型名称（如gemma3:12b、qwen2.5vl:7b）
	provider, err := vlllm.NewProvider(config, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("Ollama VLLLM Provider创建成功 model=%s url=%s", config.ModelName, config.BaseURL)
	return provider, nil
}

func init() {
	vlllm.Register("ollama", NewProvider)
}
