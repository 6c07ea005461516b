package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/msgpilot/msgpilot/provider"
)

// capturingTool records the arguments it was run with.
type capturingTool struct {
	name     string
	lastArgs string
	result   string
	panicMsg string
}

func (t *capturingTool) Def() provider.ToolDef {
	return provider.ToolDef{
		Type: "function",
		Function: provider.FunctionDef{
			Name:       t.name,
			Parameters: map[string]any{"type": "object", "properties": map[string]any{}},
		},
	}
}

func (t *capturingTool) Run(ctx context.Context, args json.RawMessage) string {
	t.lastArgs = string(args)
	if t.panicMsg != "" {
		panic(t.panicMsg)
	}
	return t.result
}

func TestRegistryRunUnknownTool(t *testing.T) {
	r := NewRegistry()
	got := r.Run(context.Background(), "no_such_tool", json.RawMessage("{}"))
	want := `{"error":"unknown tool no_such_tool"}`
	if got != want {
		t.Errorf("Run() = %s, want %s", got, want)
	}
}

func TestRegistryRunRecoversPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(&capturingTool{name: "boom", panicMsg: "index out of range"})

	got := r.Run(context.Background(), "boom", json.RawMessage("{}"))
	want := `{"error":"tool 'boom' failed: index out of range"}`
	if got != want {
		t.Errorf("Run() = %s, want %s", got, want)
	}
}

func TestRegistryRunNormalizesMalformedArgs(t *testing.T) {
	tests := []struct {
		name string
		args string
	}{
		{name: "truncated json", args: `{"recipient":`},
		{name: "plain text", args: "send it to sam"},
		{name: "empty string", args: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tool := &capturingTool{name: "echo", result: "ok"}
			r := NewRegistry()
			r.Register(tool)

			got := r.Run(context.Background(), "echo", json.RawMessage(tt.args))
			if got != "ok" {
				t.Fatalf("Run() = %s, malformed args must not fail the call", got)
			}
			if tool.lastArgs != "{}" {
				t.Errorf("tool saw args %q, want empty object", tool.lastArgs)
			}
		})
	}
}

func TestRegistryRunPassesValidArgs(t *testing.T) {
	tool := &capturingTool{name: "echo", result: "ok"}
	r := NewRegistry()
	r.Register(tool)

	r.Run(context.Background(), "echo", json.RawMessage(`{"a":1}`))
	if tool.lastArgs != `{"a":1}` {
		t.Errorf("tool saw args %q, want them unchanged", tool.lastArgs)
	}
}

func TestFuncTool(t *testing.T) {
	def := provider.ToolDef{
		Type:     "function",
		Function: provider.FunctionDef{Name: "lookup_contact"},
	}

	ok := NewFuncTool(def, func(ctx context.Context, args json.RawMessage) (string, error) {
		return `{"found":true}`, nil
	})
	if got := ok.Run(context.Background(), json.RawMessage(`{}`)); got != `{"found":true}` {
		t.Errorf("Run() = %s, want function result", got)
	}

	failing := NewFuncTool(def, func(ctx context.Context, args json.RawMessage) (string, error) {
		return "", errors.New("directory unavailable")
	})
	got := failing.Run(context.Background(), json.RawMessage(`{}`))
	want := `{"error":"tool 'lookup_contact' failed: directory unavailable"}`
	if got != want {
		t.Errorf("Run() = %s, want %s", got, want)
	}
}

func TestRegistryDefsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&capturingTool{name: "zeta"})
	r.Register(&capturingTool{name: "alpha"})
	r.Register(&capturingTool{name: "mid"})

	defs := r.Defs()
	want := []string{"alpha", "mid", "zeta"}
	if len(defs) != len(want) {
		t.Fatalf("Defs() returned %d entries, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Function.Name != name {
			t.Errorf("Defs()[%d] = %s, want %s", i, defs[i].Function.Name, name)
		}
	}
}
