package extract

import (
	"errors"
	"fmt"
)

// ErrorKind 错误类别
type ErrorKind string

const (
	KindUploadRead    ErrorKind = "UploadReadError"
	KindImageDecode   ErrorKind = "ImageDecodeError"
	KindModelService  ErrorKind = "ModelServiceError"
	KindResponseParse ErrorKind = "ResponseParseError"
)

// 操作名称
const (
	OpReadUpload    = "read_upload"
	OpDecodeImage   = "decode_image"
	OpModelCall     = "model_call"
	OpParseResponse = "parse_response"
)

// Error 在出错位置构造的结构化错误
type Error struct {
	Kind    ErrorKind
	Op      string
	Attempt int
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Pipe 返回 kind||||op||||attempt||||message 格式，用于日志和500响应
func (e *Error) Pipe() string {
	return fmt.Sprintf("%s||||%s||||%d||||%s", e.Kind, e.Op, e.Attempt, e.Error())
}

// AsError 从错误链中取出 *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
