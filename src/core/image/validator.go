package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/utils"

	_ "image/gif"  // 注册GIF解码器
	_ "image/jpeg" // 注册JPEG解码器
	_ "image/png"  // 注册PNG解码器

	_ "golang.org/x/image/bmp"  // 注册BMP解码器
	_ "golang.org/x/image/tiff" // 注册TIFF解码器
	_ "golang.org/x/image/webp" // 注册WEBP解码器
)

// ImageSecurityValidator 图片安全验证器
type ImageSecurityValidator struct {
	config *configs.SecurityConfig
	logger *utils.Logger
}

// NewImageSecurityValidator 创建新的图片安全验证器
func NewImageSecurityValidator(config *configs.SecurityConfig, logger *utils.Logger) *ImageSecurityValidator {
	return &ImageSecurityValidator{
		config: config,
		logger: logger,
	}
}

// Validate 验证上传的原始图片字节
func (v *ImageSecurityValidator) Validate(data []byte) ValidationResult {
	result := ValidationResult{IsValid: false}

	// 1. 基础大小检查
	if v.config.MaxFileSize > 0 && int64(len(data)) > v.config.MaxFileSize {
		result.Error = fmt.Errorf("文件大小超限: %d bytes，最大允许: %d bytes", len(data), v.config.MaxFileSize)
		result.SecurityRisk = "文件过大，可能是DoS攻击"
		return result
	}

	// 2. 恶意内容检测
	if v.config.EnableDeepScan {
		if risk := v.scanForMaliciousContent(data); risk != "" {
			result.Error = fmt.Errorf("检测到潜在恶意内容: %s", risk)
			result.SecurityRisk = risk
			return result
		}
	}

	// 3. 解码图片头获取详细信息
	result = v.validateImageDecoding(data)
	if !result.IsValid {
		return result
	}

	// 4. 格式白名单
	if len(v.config.AllowedFormats) > 0 && !v.isFormatAllowed(result.Format) {
		result.IsValid = false
		result.Error = fmt.Errorf("不支持的格式: %s", result.Format)
		result.SecurityRisk = "使用了不被允许的格式"
		return result
	}

	return result
}

// isFormatAllowed 检查格式是否被允许
func (v *ImageSecurityValidator) isFormatAllowed(format string) bool {
	for _, allowed := range v.config.AllowedFormats {
		if strings.EqualFold(allowed, format) {
			return true
		}
		if strings.EqualFold(allowed, "jpg") && format == "jpeg" {
			return true
		}
	}
	return false
}

var executableSignatures = []struct {
	name string
	sig  []byte
}{
	{"PE", []byte{0x4D, 0x5A}},
	{"ELF", []byte{0x7F, 0x45, 0x4C, 0x46}},
	{"Mach-O", []byte{0xCA, 0xFE, 0xBA, 0xBE}},
	{"ZIP", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"GZIP", []byte{0x1F, 0x8B, 0x08}},
}

var svgSuspicious = []string{
	"<script",
	"javascript:",
	"onload=",
	"onerror=",
	"<iframe",
	"<object",
	"<embed",
}

// scanForMaliciousContent 扫描恶意内容，返回风险描述，安全时返回空字符串
func (v *ImageSecurityValidator) scanForMaliciousContent(data []byte) string {
	for _, s := range executableSignatures {
		if bytes.HasPrefix(data, s.sig) {
			v.logger.Warn("文件开头检测到%s签名", s.name)
			return s.name + " 文件签名"
		}
	}

	head := data
	if len(head) > 4096 {
		head = head[:4096]
	}
	lower := strings.ToLower(string(head))
	if strings.Contains(lower, "<svg") {
		for _, suspicious := range svgSuspicious {
			if strings.Contains(lower, suspicious) {
				v.logger.Warn("在SVG中检测到可疑脚本内容: %s", suspicious)
				return "SVG脚本内容"
			}
		}
	}
	return ""
}

// validateImageDecoding 验证图片解码
func (v *ImageSecurityValidator) validateImageDecoding(data []byte) ValidationResult {
	result := ValidationResult{}

	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("图片解码失败: %w", err)
		return result
	}
	result.Format = format

	// 检查尺寸限制
	if (v.config.MaxWidth > 0 && config.Width > v.config.MaxWidth) ||
		(v.config.MaxHeight > 0 && config.Height > v.config.MaxHeight) {
		result.Error = fmt.Errorf("图片尺寸超限: %dx%d，最大允许: %dx%d",
			config.Width, config.Height, v.config.MaxWidth, v.config.MaxHeight)
		result.SecurityRisk = "图片过大，可能消耗过多资源"
		return result
	}

	// 检查像素总数
	totalPixels := int64(config.Width) * int64(config.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		result.Error = fmt.Errorf("像素总数超限: %d，最大允许: %d", totalPixels, v.config.MaxPixels)
		result.SecurityRisk = "像素过多，可能导致内存耗尽"
		return result
	}

	result.IsValid = true
	result.Width = config.Width
	result.Height = config.Height
	result.FileSize = int64(len(data))
	return result
}
