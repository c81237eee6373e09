package providers

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/hexlight/docuflow/llm"
)

func TestAnthropicBuildURL(t *testing.T) {
	a := &AnthropicProvider{}
	if got := a.BuildURL(""); got != "https://api.anthropic.com/v1/messages" {
		t.Errorf("BuildURL() = %q", got)
	}
	if got := a.BuildURL("https://proxy.internal/"); got != "https://proxy.internal/v1/messages" {
		t.Errorf("BuildURL() = %q", got)
	}
}

func TestAnthropicBuildRequestBody(t *testing.T) {
	a := &AnthropicProvider{}
	body, err := a.BuildRequestBody("claude-x", []llm.Message{
		{Role: "system", Content: "You write specs."},
		{Role: "user", Content: "Draft the charter."},
	}, nil, 0)
	if err != nil {
		t.Fatalf("BuildRequestBody() error = %v", err)
	}

	var req struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    string `json:"system"`
		Messages  []struct {
			Role string `json:"role"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if req.System != "You write specs." {
		t.Errorf("system = %q", req.System)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, system message should be lifted out", req.Messages)
	}
	if req.MaxTokens != 4096 {
		t.Errorf("max_tokens = %d, want default 4096", req.MaxTokens)
	}
}

func TestAnthropicParseResponse(t *testing.T) {
	a := &AnthropicProvider{}
	body := []byte(`{
		"content": [{"type":"text","text":"# Charter\n"},{"type":"text","text":"Scope."}],
		"model": "claude-x",
		"stop_reason": "end_turn",
		"usage": {"input_tokens": 10, "output_tokens": 5}
	}`)

	resp, err := a.ParseResponse(body, "claude-x")
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if resp.Content != "# Charter\nScope." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
	if resp.FinishReason != "end_turn" {
		t.Errorf("finish reason = %q", resp.FinishReason)
	}
}

func TestOllamaBuildURL(t *testing.T) {
	o := &OllamaProvider{}
	tests := []struct {
		in   string
		want string
	}{
		{"", "http://localhost:11434/v1/chat/completions"},
		{"http://gpu-box:8000/v1", "http://gpu-box:8000/v1/chat/completions"},
		{"http://gpu-box:8000/v1/chat/completions", "http://gpu-box:8000/v1/chat/completions"},
	}
	for _, tt := range tests {
		if got := o.BuildURL(tt.in); got != tt.want {
			t.Errorf("BuildURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOllamaBuildRequestBodyOmitsUnsetFields(t *testing.T) {
	o := &OllamaProvider{}
	body, err := o.BuildRequestBody("qwen", []llm.Message{{Role: "user", Content: "hi"}}, nil, 0)
	if err != nil {
		t.Fatalf("BuildRequestBody() error = %v", err)
	}
	s := string(body)
	if strings.Contains(s, "temperature") || strings.Contains(s, "max_tokens") {
		t.Errorf("unset fields serialized: %s", s)
	}

	temp := 0.0
	body, err = o.BuildRequestBody("qwen", []llm.Message{{Role: "user", Content: "hi"}}, &temp, 128)
	if err != nil {
		t.Fatalf("BuildRequestBody() error = %v", err)
	}
	s = string(body)
	if !strings.Contains(s, `"temperature":0`) || !strings.Contains(s, `"max_tokens":128`) {
		t.Errorf("explicit fields missing: %s", s)
	}
}

func TestOllamaParseResponse(t *testing.T) {
	o := &OllamaProvider{}
	body := []byte(`{
		"model": "qwen",
		"choices": [{"message":{"role":"assistant","content":"done"},"finish_reason":"stop"}],
		"usage": {"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}
	}`)

	resp, err := o.ParseResponse(body, "qwen")
	if err != nil {
		t.Fatalf("ParseResponse() error = %v", err)
	}
	if resp.Content != "done" || resp.Usage.TotalTokens != 5 {
		t.Errorf("resp = %+v", resp)
	}

	if _, err := o.ParseResponse([]byte(`{"choices":[]}`), "qwen"); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestProvidersRegistered(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "ollama"} {
		if llm.GetProvider(name) == nil {
			t.Errorf("provider %s not registered", name)
		}
	}
}

func TestOpenAIBuildURL(t *testing.T) {
	o := &OpenAIProvider{}
	if got := o.BuildURL(""); got != "https://api.openai.com/v1/chat/completions" {
		t.Errorf("BuildURL() = %q", got)
	}
}
