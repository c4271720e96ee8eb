package image

import (
	"encoding/base64"
	"fmt"
	"sync/atomic"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/utils"
)

// ImageProcessor 图片处理器
type ImageProcessor struct {
	validator *ImageSecurityValidator
	logger    *utils.Logger
	metrics   *ImageMetrics
}

// NewImageProcessor 创建新的图片处理器
func NewImageProcessor(security *configs.SecurityConfig, logger *utils.Logger) *ImageProcessor {
	return &ImageProcessor{
		validator: NewImageSecurityValidator(security, logger),
		logger:    logger,
		metrics:   &ImageMetrics{},
	}
}

// Process 校验上传的原始图片并转换为模型需要的base64数据
func (p *ImageProcessor) Process(data []byte) (ImageData, ValidationResult, error) {
	atomic.AddInt64(&p.metrics.TotalProcessed, 1)

	if len(data) == 0 {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		return ImageData{}, ValidationResult{}, fmt.Errorf("图片数据为空")
	}

	result := p.validator.Validate(data)
	if !result.IsValid {
		atomic.AddInt64(&p.metrics.FailedValidations, 1)
		if result.SecurityRisk != "" {
			atomic.AddInt64(&p.metrics.SecurityIncidents, 1)
			p.logger.Warn("图片验证失败: %v, 风险: %s", result.Error, result.SecurityRisk)
		}
		return ImageData{}, result, result.Error
	}

	p.logger.Debug("图片处理完成 format=%s width=%d height=%d size=%d",
		result.Format, result.Width, result.Height, result.FileSize)

	return ImageData{
		Data:   base64.StdEncoding.EncodeToString(data),
		Format: result.Format,
	}, result, nil
}

// GetMetrics 获取处理统计信息
func (p *ImageProcessor) GetMetrics() ImageMetrics {
	return ImageMetrics{
		TotalProcessed:    atomic.LoadInt64(&p.metrics.TotalProcessed),
		FailedValidations: atomic.LoadInt64(&p.metrics.FailedValidations),
		SecurityIncidents: atomic.LoadInt64(&p.metrics.SecurityIncidents),
	}
}
