package extract

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"ocr-server-go/src/core/utils"
)

var (
	errNotObject    = errors.New("model response is not a JSON object")
	errTrailingData = errors.New("unexpected data after top-level JSON object")
)

// ParseModelResponse 去掉代码块标记后把模型回复解析为JSON对象
// 数字保留为 json.Number，大整数（账号、卡号等）原样输出
func ParseModelResponse(text string) (map[string]interface{}, error) {
	cleaned := utils.StripCodeFence(text)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var object map[string]interface{}
	if err := dec.Decode(&object); err != nil {
		return nil, err
	}
	if object == nil {
		return nil, errNotObject
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, errTrailingData
	}
	return object, nil
}
