package vlllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ocr-server-go/src/core/image"
	"ocr-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

// Config VLLLM配置结构
type Config struct {
	Type        string
	ModelName   string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Timeout     time.Duration // 0 表示不限制
}

// Provider VLLLM提供者，直接处理多模态API
type Provider struct {
	config *Config
	logger *utils.TaggedLogger

	openaiClient *openai.Client // 用于OpenAI类型
	httpClient   *http.Client   // 用于Ollama类型
}

// OllamaRequest Ollama API请求结构
type OllamaRequest struct {
	Model    string                 `json:"model"`
	Messages []OllamaMessage        `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// OllamaMessage Ollama消息结构
type OllamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // base64编码的图片
}

// OllamaResponse Ollama API响应结构
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// StatusError 模型服务返回非200状态
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("模型服务返回错误 (status %d): %s", e.StatusCode, e.Body)
}

// NewProvider 创建新的VLLLM提供者
func NewProvider(config *Config, logger *utils.Logger) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("VLLLM配置为空")
	}
	return &Provider{
		config:     config,
		logger:     logger.WithTag("vlllm"),
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Initialize 初始化Provider
func (p *Provider) Initialize() error {
	switch strings.ToLower(p.config.Type) {
	case "openai":
		if p.config.APIKey == "" {
			return fmt.Errorf("OpenAI API key is required")
		}
		clientConfig := openai.DefaultConfig(p.config.APIKey)
		if p.config.BaseURL != "" {
			clientConfig.BaseURL = p.config.BaseURL
		}
		clientConfig.HTTPClient = p.httpClient
		p.openaiClient = openai.NewClientWithConfig(clientConfig)

	case "ollama":
		// Ollama不需要API key，只需要确保有BaseURL
		if p.config.BaseURL == "" {
			p.config.BaseURL = "http://localhost:11434"
		}

	default:
		return fmt.Errorf("不支持的VLLLM类型: %s", p.config.Type)
	}

	p.logger.Debug("VLLLM Provider初始化成功 type=%s model=%s url=%s",
		p.config.Type, p.config.ModelName, p.config.BaseURL)
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	p.httpClient.CloseIdleConnections()
	p.logger.Info("VLLLM Provider清理完成")
	return nil
}

// ModelName 返回模型名称
func (p *Provider) ModelName() string {
	return p.config.ModelName
}

// GetConfig 获取配置信息
func (p *Provider) GetConfig() *Config {
	return p.config
}

// Complete 发送一条带图片的指令并返回完整回复
func (p *Provider) Complete(ctx context.Context, imageData image.ImageData, prompt string) (string, error) {
	if imageData.Data == "" {
		return "", fmt.Errorf("图片数据为空")
	}

	p.logger.Debug("开始调用多模态API type=%s model=%s image_size=%d",
		p.config.Type, p.config.ModelName, len(imageData.Data))

	var (
		content string
		err     error
	)
	switch strings.ToLower(p.config.Type) {
	case "openai":
		content, err = p.completeWithOpenAIVision(ctx, imageData, prompt)
	case "ollama":
		content, err = p.completeWithOllamaVision(ctx, imageData, prompt)
	default:
		return "", fmt.Errorf("不支持的VLLLM类型: %s", p.config.Type)
	}
	if err != nil {
		return "", err
	}
	return utils.RemoveThinkSections(content), nil
}

// completeWithOpenAIVision 使用OpenAI Vision API
func (p *Provider) completeWithOpenAIVision(ctx context.Context, imageData image.ImageData, prompt string) (string, error) {
	if p.openaiClient == nil {
		return "", fmt.Errorf("OpenAI客户端未初始化")
	}

	format := imageData.Format
	if format == "" {
		format = "jpeg"
	}
	visionMessage := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:image/%s;base64,%s", format, imageData.Data),
				},
			},
		},
	}

	resp, err := p.openaiClient.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.config.ModelName,
		Messages:    []openai.ChatCompletionMessage{visionMessage},
		Temperature: float32(p.config.Temperature),
		TopP:        float32(p.config.TopP),
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI Vision API调用失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI Vision API返回空结果")
	}

	p.logger.Info("OpenAI Vision API调用成功 model=%s tokens=%d", resp.Model, resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// completeWithOllamaVision 使用Ollama Vision API
func (p *Provider) completeWithOllamaVision(ctx context.Context, imageData image.ImageData, prompt string) (string, error) {
	options := map[string]interface{}{}
	if p.config.Temperature > 0 {
		options["temperature"] = p.config.Temperature
	}
	if p.config.TopP > 0 {
		options["top_p"] = p.config.TopP
	}
	if p.config.MaxTokens > 0 {
		options["num_predict"] = p.config.MaxTokens
	}

	request := OllamaRequest{
		Model: p.config.ModelName,
		Messages: []OllamaMessage{{
			Role:    "user",
			Content: prompt,
			Images:  []string{imageData.Data}, // Ollama需要纯base64，不需要data URL前缀
		}},
		Stream: false,
	}
	if len(options) > 0 {
		request.Options = options
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("Ollama请求序列化失败: %w", err)
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimSuffix(p.config.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestBody))
	if err != nil {
		return "", fmt.Errorf("创建Ollama请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("Ollama API调用失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取Ollama响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 512)}
	}

	var response OllamaResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("解析Ollama响应失败: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("Ollama返回错误: %s", response.Error)
	}

	p.logger.Info("Ollama Vision API调用成功 model=%s", response.Model)
	return response.Message.Content, nil
}

// Ping 检查模型服务是否可达
func (p *Provider) Ping(ctx context.Context) error {
	switch strings.ToLower(p.config.Type) {
	case "openai":
		if p.openaiClient == nil {
			return fmt.Errorf("OpenAI客户端未初始化")
		}
		if _, err := p.openaiClient.ListModels(ctx); err != nil {
			return fmt.Errorf("OpenAI服务不可达: %w", err)
		}
		return nil
	case "ollama":
		url := fmt.Sprintf("%s/api/tags", strings.TrimSuffix(p.config.BaseURL, "/"))
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("创建请求失败: %w", err)
		}
		resp, err := p.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("Ollama服务不可达: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		}
		return nil
	default:
		return fmt.Errorf("不支持的VLLLM类型: %s", p.config.Type)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
