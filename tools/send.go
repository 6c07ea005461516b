package tools

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/msgpilot/msgpilot/bridge"
	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/provider"
)

// ContactResolver looks up the display name for a recipient ID. An empty
// name means the contact is unknown, which skips the identity check.
type ContactResolver interface {
	ResolveName(ctx context.Context, recipientID string) (string, error)
}

// SendMessageTool delivers a message to a recipient through the bridge.
type SendMessageTool struct {
	sender   bridge.Sender
	contacts ContactResolver
}

// NewSendMessageTool creates a send_message tool. resolver may be nil, in
// which case no identity check is performed.
func NewSendMessageTool(sender bridge.Sender, resolver ContactResolver) *SendMessageTool {
	return &SendMessageTool{sender: sender, contacts: resolver}
}

func (t *SendMessageTool) Def() provider.ToolDef {
	return provider.ToolDef{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        "send_message",
			Description: "Send a message to a contact. Provide the recipient id, the expected recipient name, and the message text.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"recipient_id": map[string]any{
						"type":        "string",
						"description": "The recipient's contact id",
					},
					"recipient_name": map[string]any{
						"type":        "string",
						"description": "The recipient's name, used to confirm the id points at the intended contact",
					},
					"message": map[string]any{
						"type":        "string",
						"description": "The message text to send",
					},
				},
				"required": []string{"recipient_id", "message"},
			},
		},
	}
}

func (t *SendMessageTool) Run(ctx context.Context, args json.RawMessage) string {
	var params struct {
		RecipientID   string `json:"recipient_id"`
		RecipientName string `json:"recipient_name"`
		Message       string `json:"message"`
	}
	if msg := parseArgs(args, &params); msg != "" {
		return msg
	}
	if params.RecipientID == "" {
		return errorPayload("recipient_id is required")
	}
	if params.Message == "" {
		return errorPayload("message is required")
	}

	if t.contacts != nil && params.RecipientName != "" {
		actual, err := t.contacts.ResolveName(ctx, params.RecipientID)
		if err != nil {
			logger.Warn("contact lookup failed, proceeding without identity check", "recipient", params.RecipientID, "error", err)
		} else if mismatch := namesMismatch(params.RecipientName, actual); mismatch {
			logger.Warn("recipient identity mismatch", "recipient", params.RecipientID, "claimed", params.RecipientName, "actual", actual)
			return errorPayload("recipient mismatch: id %s belongs to %q, not %q; verify the contact before sending", params.RecipientID, actual, params.RecipientName)
		}
	}

	messageID, err := t.sender.Send(ctx, params.RecipientID, params.Message)
	if err != nil {
		return errorPayload("send failed: %v", err)
	}
	return jsonResult(map[string]string{
		"status":     "sent",
		"message_id": messageID,
	})
}

// namesMismatch reports whether the claimed and actual names refer to
// different contacts. Comparison is case-insensitive on trimmed names, and a
// name containing the other counts as a match. Either name being empty
// disables the check.
func namesMismatch(claimed, actual string) bool {
	c := strings.ToLower(strings.TrimSpace(claimed))
	a := strings.ToLower(strings.TrimSpace(actual))
	if c == "" || a == "" {
		return false
	}
	if c == a {
		return false
	}
	if strings.Contains(c, a) || strings.Contains(a, c) {
		return false
	}
	return true
}
