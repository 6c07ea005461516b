package tools

import (
	"context"
	"encoding/json"

	"github.com/msgpilot/msgpilot/bridge"
	"github.com/msgpilot/msgpilot/provider"
)

// BridgeStatusTool reports whether the messaging bridge is connected.
type BridgeStatusTool struct {
	client *bridge.Client
}

func NewBridgeStatusTool(client *bridge.Client) *BridgeStatusTool {
	return &BridgeStatusTool{client: client}
}

func (t *BridgeStatusTool) Def() provider.ToolDef {
	return provider.ToolDef{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        "check_bridge_status",
			Description: "Check whether the messaging bridge is online and connected.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

func (t *BridgeStatusTool) Run(ctx context.Context, args json.RawMessage) string {
	return t.client.Status(ctx)
}
