package tools

import (
	"context"
	"encoding/json"

	"github.com/msgpilot/msgpilot/provider"
)

// FuncTool adapts a plain function into a Tool, for capabilities implemented
// outside this package (contact lookups, message search, and similar).
type FuncTool struct {
	def provider.ToolDef
	fn  func(ctx context.Context, args json.RawMessage) (string, error)
}

// NewFuncTool wraps fn as a tool with the given definition. A returned error
// becomes a structured failure payload the model can read.
func NewFuncTool(def provider.ToolDef, fn func(ctx context.Context, args json.RawMessage) (string, error)) *FuncTool {
	return &FuncTool{def: def, fn: fn}
}

func (t *FuncTool) Def() provider.ToolDef { return t.def }

func (t *FuncTool) Run(ctx context.Context, args json.RawMessage) string {
	out, err := t.fn(ctx, args)
	if err != nil {
		return errorPayload("tool '%s' failed: %v", t.def.Function.Name, err)
	}
	return out
}
