package vlllm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ocr-server-go/src/configs"
	"ocr-server-go/src/core/image"
	"ocr-server-go/src/core/utils"
)

func testLogger() *utils.Logger {
	return utils.NewWriterLogger("test", "debug", io.Discard)
}

var testImage = image.ImageData{Data: "aW1hZ2U=", Format: "png"}

func newTestProvider(t *testing.T, config *Config) *Provider {
	t.Helper()
	p, err := NewProvider(config, testLogger())
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return p
}

func TestComplete_Ollama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/chat" {
			t.Errorf("expected /api/chat, got %s", r.URL.Path)
		}

		var req OllamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Model != "gemma3:12b" {
			t.Errorf("expected model gemma3:12b, got %s", req.Model)
		}
		if req.Stream {
			t.Error("expected stream to be false")
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 || req.Messages[0].Images[0] != testImage.Data {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Messages[0].Content != "extract" {
			t.Errorf("expected prompt to be forwarded, got %q", req.Messages[0].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"gemma3:12b","message":{"role":"assistant","content":"<think>hmm</think>` + "```json\\n{\\\"a\\\": 1}\\n```" + `"},"done":true}`))
	}))
	defer server.Close()

	p := newTestProvider(t, &Config{Type: "ollama", ModelName: "gemma3:12b", BaseURL: server.URL + "/"})

	content, err := p.Complete(context.Background(), testImage, "extract")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if content != "```json\n{\"a\": 1}\n```" {
		t.Errorf("content = %q", content)
	}
}

func TestComplete_OllamaStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"model 'gemma3:12b' not found"}`))
	}))
	defer server.Close()

	p := newTestProvider(t, &Config{Type: "ollama", ModelName: "gemma3:12b", BaseURL: server.URL})

	_, err := p.Complete(context.Background(), testImage, "extract")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || !strings.Contains(statusErr.Body, "not found") {
		t.Errorf("unexpected status error: %+v", statusErr)
	}
}

func TestComplete_OllamaTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	p := newTestProvider(t, &Config{Type: "ollama", ModelName: "m", BaseURL: server.URL, Timeout: 20 * time.Millisecond})

	if _, err := p.Complete(context.Background(), testImage, "extract"); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestComplete_OpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("unexpected Authorization header %q", auth)
		}

		var req map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		raw, _ := json.Marshal(req["messages"])
		if !strings.Contains(string(raw), "data:image/png;base64,"+testImage.Data) {
			t.Errorf("expected data URL image part, got %s", raw)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","model":"qwen-vl","choices":[{"index":0,"message":{"role":"assistant","content":"{\"a\": 1}"},"finish_reason":"stop"}],"usage":{"total_tokens":10}}`))
	}))
	defer server.Close()

	p := newTestProvider(t, &Config{Type: "openai", ModelName: "qwen-vl", BaseURL: server.URL + "/v1", APIKey: "sk-test"})

	content, err := p.Complete(context.Background(), testImage, "extract")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if content != `{"a": 1}` {
		t.Errorf("content = %q", content)
	}
}

func TestInitialize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "OpenAI缺少API key", config: &Config{Type: "openai", ModelName: "m"}},
		{name: "不支持的类型", config: &Config{Type: "gemini", ModelName: "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config, testLogger())
			if err != nil {
				t.Fatalf("NewProvider() error = %v", err)
			}
			if err := p.Initialize(); err == nil {
				t.Error("expected Initialize() to fail")
			}
		})
	}
}

func TestPing_Ollama(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"models":[]}`))
	}))
	defer server.Close()

	p := newTestProvider(t, &Config{Type: "ollama", ModelName: "m", BaseURL: server.URL})
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	server.Close()
	if err := p.Ping(context.Background()); err == nil {
		t.Error("expected Ping() to fail after server shutdown")
	}
}

func TestCreate(t *testing.T) {
	Register("fake", func(config *Config, logger *utils.Logger) (*Provider, error) {
		config.Type = "ollama"
		return NewProvider(config, logger)
	})

	p, err := Create(&configs.VLLMConfig{Type: "FAKE", ModelName: "m", Timeout: "2s"}, testLogger())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.ModelName() != "m" || p.GetConfig().Timeout != 2*time.Second {
		t.Errorf("unexpected config: %+v", p.GetConfig())
	}
	if p.GetConfig().BaseURL != "http://localhost:11434" {
		t.Errorf("expected default Ollama url, got %q", p.GetConfig().BaseURL)
	}

	found := false
	for _, name := range GetRegisteredProviders() {
		if name == "fake" {
			found = true
		}
	}
	if !found {
		t.Errorf("GetRegisteredProviders() = %v, want fake listed", GetRegisteredProviders())
	}

	_, err = Create(&configs.VLLMConfig{Type: "missing"}, testLogger())
	if err == nil || !strings.Contains(err.Error(), "fake") {
		t.Errorf("Create(missing) error = %v, want the registered types listed", err)
	}
	if _, err := Create(&configs.VLLMConfig{Type: "fake", Timeout: "soon"}, testLogger()); err == nil {
		t.Error("expected error for invalid timeout")
	}
}
