package pool

import (
	"encoding/base64"
	"fmt"
)

// TestDataGenerator 测试数据生成器
type TestDataGenerator struct {
	testPrompt string
}

// NewTestDataGenerator 创建测试数据生成器
func NewTestDataGenerator(testPrompt string) *TestDataGenerator {
	return &TestDataGenerator{testPrompt: testPrompt}
}

// GetTestPrompt 获取VLLLM测试提示词
func (tdg *TestDataGenerator) GetTestPrompt() string {
	if tdg.testPrompt != "" {
		return tdg.testPrompt
	}
	return `Describe this image in one short JSON object like {"description": "..."}.`
}

// GetTestImageData 获取测试图片数据，1x1像素的PNG图片
func (tdg *TestDataGenerator) GetTestImageData() ([]byte, error) {
	testImageBase64 := `iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==`

	imageData, err := base64.StdEncoding.DecodeString(testImageBase64)
	if err != nil {
		return nil, fmt.Errorf("解码测试图片数据失败: %v", err)
	}
	return imageData, nil
}

// ValidateVLLLMResponse 验证VLLLM响应是否合理
func (tdg *TestDataGenerator) ValidateVLLLMResponse(response string) bool {
	return len(response) > 0 && len(response) <= 10000
}
