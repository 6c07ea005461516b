package provider

import (
	"errors"
	"testing"
)

func TestNewProviderValidation(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		wantErr  string
	}{
		{
			name:     "unknown provider",
			settings: Settings{Name: "cohere", APIKey: "sk-x", Model: "m"},
			wantErr:  "unknown provider",
		},
		{
			name:     "missing api key",
			settings: Settings{Name: "openai", Model: "m"},
			wantErr:  "API key not configured",
		},
		{
			name:     "missing model",
			settings: Settings{Name: "openai", APIKey: "sk-x"},
			wantErr:  "model is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			t.Setenv("ANTHROPIC_API_KEY", "")
			_, err := New(tt.settings)
			if err == nil {
				t.Fatalf("New(%+v) succeeded, want error containing %q", tt.settings, tt.wantErr)
			}
		})
	}

	if _, err := New(Settings{Name: "cohere", APIKey: "k", Model: "m"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("error = %v, want ErrUnknownProvider", err)
	}
}

func TestNewProviderEnvFallback(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	p, err := New(Settings{Name: "openai", Model: "gpt-4o-mini"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if p == nil {
		t.Fatal("New() returned nil provider")
	}
}

func TestNormalizeSDKBaseURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "empty uses default", raw: "", want: "https://api.example.com/v1"},
		{name: "trailing slash", raw: "https://proxy.local/v1/", want: "https://proxy.local/v1"},
		{name: "endpoint suffix stripped", raw: "https://proxy.local/v1/chat/completions", want: "https://proxy.local/v1"},
		{name: "already clean", raw: "https://proxy.local/v1", want: "https://proxy.local/v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeSDKBaseURL(tt.raw, "https://api.example.com/v1", "/chat/completions")
			if got != tt.want {
				t.Errorf("normalizeSDKBaseURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestMessageConstructors(t *testing.T) {
	u := UserMessage("hi")
	if u.Role != "user" || u.Content != "hi" {
		t.Errorf("UserMessage = %+v", u)
	}

	calls := []ToolCall{{ID: "c1", Type: "function", Function: FunctionCall{Name: "lookup", Arguments: "{}"}}}
	a := AssistantMessageWithTools("thinking", calls)
	if a.Role != "assistant" || len(a.ToolCalls) != 1 {
		t.Errorf("AssistantMessageWithTools = %+v", a)
	}

	tr := ToolResultMessage("c1", "lookup", "data")
	if tr.Role != "tool" || tr.ToolCallID != "c1" || tr.Name != "lookup" {
		t.Errorf("ToolResultMessage = %+v", tr)
	}

	resp := Response{ToolCalls: calls}
	if !resp.HasToolCalls() {
		t.Error("HasToolCalls() = false with tool calls present")
	}
	if (&Response{Content: "x"}).HasToolCalls() {
		t.Error("HasToolCalls() = true without tool calls")
	}
}
