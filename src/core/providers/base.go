package providers

import (
	"context"

	"ocr-server-go/src/core/image"
)

// Provider 所有提供者的基础接口
type Provider interface {
	Initialize() error
	Cleanup() error
}

// VisionProvider 视觉语言模型提供者接口
type VisionProvider interface {
	Provider
	// Complete 发送一条带图片的指令，返回模型的完整文本回复
	Complete(ctx context.Context, imageData image.ImageData, prompt string) (string, error)
	// Ping 检查模型服务是否可达
	Ping(ctx context.Context) error
	// ModelName 返回使用的模型名称
	ModelName() string
}
