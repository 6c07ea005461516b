// Package tools provides the tool interface, the dispatch registry, and the
// built-in messaging tools.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/tidwall/gjson"

	"github.com/msgpilot/msgpilot/internal/metrics"
	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/provider"
)

// Tool is the interface for agent tools.
type Tool interface {
	// Def returns the tool definition for the LLM.
	Def() provider.ToolDef
	// Run executes the tool with the given arguments and returns the result.
	// Failures are returned as JSON payloads for the model to interpret.
	Run(ctx context.Context, args json.RawMessage) string
}

// Registry holds registered tools and dispatches calls to them. Dispatch
// never raises: unknown tools, panicking tools, and malformed arguments all
// come back as structured error payloads the model can read and adapt to.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.tools[t.Def().Function.Name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Defs returns all tool definitions, sorted by name for a stable request
// payload.
func (r *Registry) Defs() []provider.ToolDef {
	defs := make([]provider.ToolDef, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Def())
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Function.Name < defs[j].Function.Name
	})
	return defs
}

// Names returns the names of all registered tools.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes a tool by name. Arguments that are not valid JSON are treated
// as an empty argument set rather than failing the round.
func (r *Registry) Run(ctx context.Context, name string, args json.RawMessage) (result string) {
	t, ok := r.tools[name]
	if !ok {
		logger.Error("tool not found", "tool", name)
		return errorPayload("unknown tool %s", name)
	}

	if len(args) == 0 || !gjson.ValidBytes(args) {
		args = json.RawMessage("{}")
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("tool panicked", "tool", name, "panic", rec)
			result = errorPayload("tool '%s' failed: %v", name, rec)
		}
	}()

	metrics.ToolRuns.WithLabelValues(name).Inc()
	return t.Run(ctx, args)
}

// errorPayload formats a structured tool-failure payload.
func errorPayload(format string, args ...any) string {
	data, _ := json.Marshal(map[string]string{"error": fmt.Sprintf(format, args...)})
	return string(data)
}

// parseArgs decodes tool arguments into dst, reporting a structured payload
// on failure.
func parseArgs(args json.RawMessage, dst any) string {
	if len(args) == 0 {
		return ""
	}
	if err := json.Unmarshal(args, dst); err != nil {
		return errorPayload("invalid arguments: %v", err)
	}
	return ""
}

// jsonResult marshals a tool result, falling back to an error payload.
func jsonResult(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return errorPayload("failed to encode result: %v", err)
	}
	return string(data)
}
