package image

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/utils"
)

func testLogger() *utils.Logger {
	return utils.NewWriterLogger("test", "debug", io.Discard)
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("编码PNG失败: %v", err)
	}
	return buf.Bytes()
}

// defaultSecurity 返回默认配置中选中模型的安全配置
func defaultSecurity(t *testing.T) configs.SecurityConfig {
	t.Helper()
	vc, err := configs.DefaultConfig().SelectedVLLM()
	if err != nil {
		t.Fatalf("SelectedVLLM() error = %v", err)
	}
	return vc.Security
}

func TestValidate(t *testing.T) {
	pngData := encodePNG(t, 4, 3)

	tests := []struct {
		name      string
		config    configs.SecurityConfig
		data      []byte
		wantValid bool
		wantRisk  bool
	}{
		{name: "合法PNG", config: defaultSecurity(t), data: pngData, wantValid: true},
		{name: "非图片数据", config: defaultSecurity(t), data: []byte("definitely not an image"), wantValid: false},
		{name: "文件过大", config: configs.SecurityConfig{MaxFileSize: 10}, data: pngData, wantValid: false, wantRisk: true},
		{name: "宽度超限", config: configs.SecurityConfig{MaxWidth: 2}, data: pngData, wantValid: false, wantRisk: true},
		{name: "像素超限", config: configs.SecurityConfig{MaxPixels: 5}, data: pngData, wantValid: false, wantRisk: true},
		{name: "格式不在白名单", config: configs.SecurityConfig{AllowedFormats: []string{"jpg"}}, data: pngData, wantValid: false, wantRisk: true},
		{name: "格式在白名单", config: configs.SecurityConfig{AllowedFormats: []string{"PNG"}}, data: pngData, wantValid: true},
		{name: "深度扫描可执行文件", config: configs.SecurityConfig{EnableDeepScan: true}, data: []byte{0x7F, 0x45, 0x4C, 0x46, 0x02}, wantValid: false, wantRisk: true},
		{name: "深度扫描放行PNG", config: configs.SecurityConfig{EnableDeepScan: true}, data: pngData, wantValid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			v := NewImageSecurityValidator(&cfg, testLogger())
			result := v.Validate(tt.data)
			if result.IsValid != tt.wantValid {
				t.Fatalf("IsValid = %v, want %v (err=%v)", result.IsValid, tt.wantValid, result.Error)
			}
			if !tt.wantValid && result.Error == nil {
				t.Error("invalid result should carry an error")
			}
			if (result.SecurityRisk != "") != tt.wantRisk {
				t.Errorf("SecurityRisk = %q, wantRisk %v", result.SecurityRisk, tt.wantRisk)
			}
			if tt.wantValid && (result.Format != "png" || result.Width != 4 || result.Height != 3) {
				t.Errorf("got %s %dx%d, want png 4x3", result.Format, result.Width, result.Height)
			}
		})
	}
}

func TestValidate_DefaultConfigHasNoLimits(t *testing.T) {
	security := defaultSecurity(t)
	v := NewImageSecurityValidator(&security, testLogger())

	tests := []struct {
		name string
		w, h int
	}{
		{name: "超宽图片", w: 17000, h: 1},
		{name: "超高图片", w: 1, h: 17000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := v.Validate(encodePNG(t, tt.w, tt.h))
			if !result.IsValid {
				t.Fatalf("decodable %dx%d PNG rejected: %v", tt.w, tt.h, result.Error)
			}
			if result.Width != tt.w || result.Height != tt.h {
				t.Errorf("got %dx%d, want %dx%d", result.Width, result.Height, tt.w, tt.h)
			}
		})
	}
}

func TestProcess(t *testing.T) {
	security := defaultSecurity(t)
	p := NewImageProcessor(&security, testLogger())

	data, result, err := p.Process(encodePNG(t, 1, 1))
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if data.Format != "png" || data.Data == "" {
		t.Errorf("unexpected image data: format=%q len=%d", data.Format, len(data.Data))
	}
	if !result.IsValid {
		t.Error("result should be valid")
	}

	if _, _, err := p.Process([]byte("not an image")); err == nil {
		t.Error("expected error for undecodable data")
	}
	if _, _, err := p.Process(nil); err == nil {
		t.Error("expected error for empty data")
	}

	metrics := p.GetMetrics()
	if metrics.TotalProcessed != 3 || metrics.FailedValidations != 2 {
		t.Errorf("metrics = %+v, want 3 processed and 2 failed", metrics)
	}
}
