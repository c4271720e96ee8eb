package pool

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/image"
	"ocr-server-go/src/core/providers"
	"ocr-server-go/src/core/utils"
)

// CheckMode 检查模式
type CheckMode int

const (
	// BasicCheck 基础连通性检查（只验证服务可达）
	BasicCheck CheckMode = iota
	// FunctionalCheck 功能性检查（发送测试图片执行实际调用）
	FunctionalCheck
)

func (m CheckMode) String() string {
	if m == FunctionalCheck {
		return "功能性"
	}
	return "基础"
}

// CheckResult 检查结果
type CheckResult struct {
	ProviderType string                 `json:"provider_type"`
	Success      bool                   `json:"success"`
	Error        error                  `json:"error,omitempty"`
	Details      map[string]interface{} `json:"details"`
	Duration     time.Duration          `json:"duration"`
	Timestamp    time.Time              `json:"timestamp"`
	CheckMode    CheckMode              `json:"check_mode"`
}

// ConnectivityConfig 连通性检查配置
type ConnectivityConfig struct {
	Enabled       bool
	Functional    bool
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	TestPrompt    string
}

// ConfigFromYAML 从YAML配置创建连通性检查配置
func ConfigFromYAML(yamlConfig *configs.ConnectivityCheckConfig) (*ConnectivityConfig, error) {
	if yamlConfig == nil {
		return DefaultConnectivityConfig(), nil
	}

	timeout := 30 * time.Second
	if yamlConfig.Timeout != "" {
		t, err := time.ParseDuration(yamlConfig.Timeout)
		if err != nil {
			return nil, fmt.Errorf("无效的超时时间 %q: %w", yamlConfig.Timeout, err)
		}
		timeout = t
	}

	retryDelay := 5 * time.Second
	if yamlConfig.RetryDelay != "" {
		t, err := time.ParseDuration(yamlConfig.RetryDelay)
		if err != nil {
			return nil, fmt.Errorf("无效的重试间隔 %q: %w", yamlConfig.RetryDelay, err)
		}
		retryDelay = t
	}

	// 设置重试次数，默认为3
	retryAttempts := 3
	if yamlConfig.RetryAttempts > 0 {
		retryAttempts = yamlConfig.RetryAttempts
	}

	return &ConnectivityConfig{
		Enabled:       yamlConfig.Enabled,
		Functional:    yamlConfig.Functional,
		Timeout:       timeout,
		RetryAttempts: retryAttempts,
		RetryDelay:    retryDelay,
		TestPrompt:    yamlConfig.TestPrompt,
	}, nil
}

// DefaultConnectivityConfig 默认连通性检查配置
func DefaultConnectivityConfig() *ConnectivityConfig {
	return &ConnectivityConfig{
		Enabled:       true,
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    5 * time.Second,
	}
}

// Mode 返回配置对应的检查模式
func (c *ConnectivityConfig) Mode() CheckMode {
	if c.Functional {
		return FunctionalCheck
	}
	return BasicCheck
}

// HealthChecker 模型服务健康检查
type HealthChecker struct {
	provider      providers.VisionProvider
	connConfig    *ConnectivityConfig
	logger        *utils.Logger
	testGenerator *TestDataGenerator
	results       map[string]*CheckResult
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(provider providers.VisionProvider, connConfig *ConnectivityConfig, logger *utils.Logger) *HealthChecker {
	if connConfig == nil {
		connConfig = DefaultConnectivityConfig()
	}

	return &HealthChecker{
		provider:      provider,
		connConfig:    connConfig,
		logger:        logger,
		testGenerator: NewTestDataGenerator(connConfig.TestPrompt),
		results:       make(map[string]*CheckResult),
	}
}

// CheckVLLLM 按配置的重试策略检查VLLLM提供者
func (hc *HealthChecker) CheckVLLLM(ctx context.Context, mode CheckMode) error {
	if !hc.connConfig.Enabled {
		hc.logger.Info("连通性检查已禁用，跳过检查")
		return nil
	}

	result := &CheckResult{
		ProviderType: "VLLLM",
		Details:      map[string]interface{}{"model": hc.provider.ModelName()},
		Timestamp:    time.Now(),
		CheckMode:    mode,
	}
	defer func() {
		result.Duration = time.Since(result.Timestamp)
		hc.results["VLLLM"] = result
	}()

	var lastErr error
	for attempt := 1; attempt <= hc.connConfig.RetryAttempts; attempt++ {
		lastErr = hc.checkOnce(ctx, mode, result)
		if lastErr == nil {
			result.Success = true
			result.Details["attempts"] = attempt
			hc.logger.Info("VLLLM%s检查通过, 模型: %s", mode, hc.provider.ModelName())
			return nil
		}

		hc.logger.Warn("VLLLM%s检查失败 (%d/%d): %v", mode, attempt, hc.connConfig.RetryAttempts, lastErr)
		if attempt == hc.connConfig.RetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			result.Error = ctx.Err()
			return ctx.Err()
		case <-time.After(hc.connConfig.RetryDelay):
		}
	}

	result.Error = lastErr
	result.Details["attempts"] = hc.connConfig.RetryAttempts
	return fmt.Errorf("VLLLM%s检查失败: %w", mode, lastErr)
}

func (hc *HealthChecker) checkOnce(ctx context.Context, mode CheckMode, result *CheckResult) error {
	checkCtx, cancel := context.WithTimeout(ctx, hc.connConfig.Timeout)
	defer cancel()

	if err := hc.provider.Ping(checkCtx); err != nil {
		return err
	}
	if mode == BasicCheck {
		return nil
	}

	hc.logger.Info("执行VLLLM功能性测试...")
	imageBytes, err := hc.testGenerator.GetTestImageData()
	if err != nil {
		return err
	}
	imageData := image.ImageData{
		Data:   base64.StdEncoding.EncodeToString(imageBytes),
		Format: "png",
	}

	response, err := hc.provider.Complete(checkCtx, imageData, hc.testGenerator.GetTestPrompt())
	if err != nil {
		return fmt.Errorf("VLLLM图像分析测试失败: %w", err)
	}
	if !hc.testGenerator.ValidateVLLLMResponse(response) {
		return fmt.Errorf("VLLLM响应验证失败: 响应内容不合理")
	}
	result.Details["response_length"] = len(response)
	return nil
}

// GetResults 获取检查结果
func (hc *HealthChecker) GetResults() map[string]*CheckResult {
	return hc.results
}

