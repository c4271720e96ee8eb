package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		LogLevel   string `yaml:"log_level"`
		LogDir     string `yaml:"log_dir"`
		LogFile    string `yaml:"log_file"`
		LoggerName string `yaml:"logger_name"`
		Console    bool   `yaml:"console"`
	} `yaml:"log"`

	Extract ExtractConfig `yaml:"extract"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	ConnectivityCheck ConnectivityCheckConfig `yaml:"connectivity_check"`

	SelectedModule map[string]string     `yaml:"selected_module"`
	VLLLM          map[string]VLLMConfig `yaml:"VLLLM"`
}

// ExtractConfig 文字提取接口配置
type ExtractConfig struct {
	Prompt         string `yaml:"prompt"`
	MaxAttempts    int    `yaml:"max_attempts"`     // 解析总尝试次数（含第一次）
	RetryModelCall bool   `yaml:"retry_model_call"` // 解析失败时是否重新调用模型
	DegradedStatus int    `yaml:"degraded_status"`  // 重试耗尽后返回的HTTP状态码
	MaxUploadSize  int64  `yaml:"max_upload_size"`  // 0 表示不限制
}

// ConnectivityCheckConfig 启动时连通性检查配置
type ConnectivityCheckConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Functional    bool   `yaml:"functional"`
	Timeout       string `yaml:"timeout"`
	RetryAttempts int    `yaml:"retry_attempts"`
	RetryDelay    string `yaml:"retry_delay"`
	TestPrompt    string `yaml:"test_prompt"`
}

// SecurityConfig 图片安全配置结构，各项限制为0表示不限制
type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`    // 最大文件大小（字节）
	MaxPixels      int64    `yaml:"max_pixels"`       // 最大像素数量
	MaxWidth       int      `yaml:"max_width"`        // 最大宽度
	MaxHeight      int      `yaml:"max_height"`       // 最大高度
	AllowedFormats []string `yaml:"allowed_formats"`  // 允许的图片格式，为空表示不限制
	EnableDeepScan bool     `yaml:"enable_deep_scan"` // 启用深度安全扫描
}

// VLLMConfig VLLLM配置结构（视觉语言大模型）
type VLLMConfig struct {
	Type        string         `yaml:"type"`        // ollama 或 openai
	ModelName   string         `yaml:"model_name"`  // 模型名称，使用支持视觉的模型
	BaseURL     string         `yaml:"url"`         // API地址
	APIKey      string         `yaml:"api_key"`     // API密钥
	Temperature float64        `yaml:"temperature"` // 温度参数
	MaxTokens   int            `yaml:"max_tokens"`  // 最大令牌数
	TopP        float64        `yaml:"top_p"`       // TopP参数
	Timeout     string         `yaml:"timeout"`     // 单次调用超时，为空表示不限制
	Security    SecurityConfig `yaml:"security"`    // 图片安全配置
}

// DefaultPrompt 默认的OCR指令
const DefaultPrompt = `Analyze the text in the provided image. Extract all readable content
and present it in a structured JSON format that is clear, concise, and
well-organized. Ensure the response has nothing apart the JSON object.`

// DefaultConfig 返回内置默认配置
func DefaultConfig() *Config {
	config := &Config{}
	config.Server.IP = "0.0.0.0"
	config.Server.Port = 8003

	config.Log.LogLevel = "info"
	config.Log.LogDir = "logs"
	config.Log.LogFile = "challenge_generic.log"
	config.Log.LoggerName = "extract"
	config.Log.Console = true

	config.Extract = ExtractConfig{
		Prompt:         DefaultPrompt,
		MaxAttempts:    3,
		RetryModelCall: false,
		DegradedStatus: 200,
		MaxUploadSize:  0,
	}

	config.ConnectivityCheck = ConnectivityCheckConfig{
		Enabled:       true,
		Timeout:       "30s",
		RetryAttempts: 3,
		RetryDelay:    "5s",
	}

	config.SelectedModule = map[string]string{"VLLLM": "OllamaVLLM"}
	config.VLLLM = map[string]VLLMConfig{
		"OllamaVLLM": {
			Type:      "ollama",
			ModelName: "gemma3:12b",
			BaseURL:   "http://localhost:11434",
		},
	}
	return config
}

// LoadConfig 从文件加载配置，文件不存在时使用默认配置
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}

	config := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		path = ""
	case err != nil:
		return nil, path, err
	default:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, path, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	config.ApplyEnv()
	if err := config.Validate(); err != nil {
		return nil, path, err
	}
	return config, path, nil
}

// ApplyEnv 使用环境变量覆盖配置
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OCR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("OCR_LOG_LEVEL"); v != "" {
		c.Log.LogLevel = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}

	name := c.SelectedModule["VLLLM"]
	vc, ok := c.VLLLM[name]
	if !ok {
		return
	}
	if v := os.Getenv("OCR_VLLLM_URL"); v != "" {
		vc.BaseURL = v
	}
	if v := os.Getenv("OCR_VLLLM_MODEL"); v != "" {
		vc.ModelName = v
	}
	if v := os.Getenv("OCR_VLLLM_API_KEY"); v != "" {
		vc.APIKey = v
	}
	c.VLLLM[name] = vc
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("无效的端口: %d", c.Server.Port)
	}
	if c.Extract.MaxAttempts < 1 {
		return fmt.Errorf("extract.max_attempts 必须大于0, 当前为 %d", c.Extract.MaxAttempts)
	}
	if _, err := c.SelectedVLLM(); err != nil {
		return err
	}
	return nil
}

// SelectedVLLM 返回当前选中的VLLLM配置
func (c *Config) SelectedVLLM() (VLLMConfig, error) {
	name := c.SelectedModule["VLLLM"]
	if name == "" {
		return VLLMConfig{}, fmt.Errorf("请设置好VLLLM provider配置")
	}
	vc, ok := c.VLLLM[name]
	if !ok {
		return VLLMConfig{}, fmt.Errorf("找不到VLLLM配置: %s", name)
	}
	if strings.TrimSpace(vc.ModelName) == "" {
		return VLLMConfig{}, fmt.Errorf("VLLLM %s 缺少 model_name", name)
	}
	return vc, nil
}
