package extract

import "fmt"

// Result 一次提取的结果：成功时 Object 有值，失败时 Failure 有值
type Result struct {
	Object   map[string]interface{}
	Failure  *Error
	Attempts int
	RawText  string
	Format   string // 上传图片的实际格式
}

// Success 构造成功结果
func Success(object map[string]interface{}, attempts int, raw string) *Result {
	return &Result{Object: object, Attempts: attempts, RawText: raw}
}

// Failure 构造解析失败的结果
func Failure(err *Error, attempts int, raw string) *Result {
	return &Result{Failure: err, Attempts: attempts, RawText: raw}
}

// OK 是否成功
func (r *Result) OK() bool {
	return r.Failure == nil
}

// Reason 失败原因，格式与旧版接口保持兼容
func (r *Result) Reason() string {
	if r.OK() {
		return ""
	}
	return fmt.Sprintf("failed after %d tries with error: %s, kind: %s, op: %s, attempt: %d",
		r.Attempts, r.Failure.Error(), r.Failure.Kind, r.Failure.Op, r.Failure.Attempt)
}

// ExtractResponse /extract-text 的响应结构
type ExtractResponse struct {
	// 成功时为JSON对象；重试耗尽后为错误描述字符串
	ExtractedJSON interface{} `json:"extracted_json"`
	Error         *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody 降级响应中的结构化错误
type ErrorBody struct {
	Kind    ErrorKind `json:"kind"`
	Op      string    `json:"op"`
	Attempt int       `json:"attempt"`
	Message string    `json:"message"`
}

// DetailResponse 500响应结构
type DetailResponse struct {
	Detail string `json:"detail"`
}
