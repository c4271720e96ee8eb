package utils

import (
	"regexp"
	"strings"
)

// codeFencePattern 匹配 ```json\n...\n``` 形式的代码块
var codeFencePattern = regexp.MustCompile("```[a-z]*\\n([\\s\\S]*?)\\n```")

// thinkPattern 匹配推理模型输出的 <think>...</think> 段落
var thinkPattern = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripCodeFence 去掉模型回复外层的代码块标记，没有代码块时原样返回
func StripCodeFence(text string) string {
	matches := codeFencePattern.FindStringSubmatch(text)
	if len(matches) < 2 {
		return text
	}
	return strings.TrimSpace(matches[1])
}

// RemoveThinkSections 去掉 <think> 段落
func RemoveThinkSections(text string) string {
	if !strings.Contains(text, "<think>") {
		return text
	}
	return strings.TrimSpace(thinkPattern.ReplaceAllString(text, ""))
}
