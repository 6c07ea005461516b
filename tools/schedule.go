package tools

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/msgpilot/msgpilot/delivery"
	"github.com/msgpilot/msgpilot/provider"
)

// ScheduleMessageTool queues a message for future delivery.
type ScheduleMessageTool struct {
	store *delivery.Store
}

func NewScheduleMessageTool(store *delivery.Store) *ScheduleMessageTool {
	return &ScheduleMessageTool{store: store}
}

func (t *ScheduleMessageTool) Def() provider.ToolDef {
	return provider.ToolDef{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        "schedule_message",
			Description: "Schedule a message to be sent to a contact at a future time. Times without a timezone offset are interpreted in the user's local timezone.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"recipient_id": map[string]any{
						"type":        "string",
						"description": "The recipient's contact id",
					},
					"recipient_name": map[string]any{
						"type":        "string",
						"description": "The recipient's name, for display in the schedule",
					},
					"message": map[string]any{
						"type":        "string",
						"description": "The message text to send",
					},
					"send_at": map[string]any{
						"type":        "string",
						"description": "When to send, RFC 3339 or local time like 2025-03-15T09:00:00",
					},
				},
				"required": []string{"recipient_id", "message", "send_at"},
			},
		},
	}
}

func (t *ScheduleMessageTool) Run(ctx context.Context, args json.RawMessage) string {
	var params struct {
		RecipientID   string `json:"recipient_id"`
		RecipientName string `json:"recipient_name"`
		Message       string `json:"message"`
		SendAt        string `json:"send_at"`
	}
	if msg := parseArgs(args, &params); msg != "" {
		return msg
	}
	rec, err := t.store.Insert(params.RecipientID, params.RecipientName, params.Message, params.SendAt)
	if err != nil {
		return errorPayload("schedule failed: %v", err)
	}
	return jsonResult(map[string]string{
		"status":  "scheduled",
		"id":      rec.ID,
		"send_at": rec.SendAt.Format(time.RFC3339),
	})
}

// ListScheduledTool returns all pending deliveries.
type ListScheduledTool struct {
	store *delivery.Store
}

func NewListScheduledTool(store *delivery.Store) *ListScheduledTool {
	return &ListScheduledTool{store: store}
}

func (t *ListScheduledTool) Def() provider.ToolDef {
	return provider.ToolDef{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        "list_scheduled_messages",
			Description: "List all pending scheduled messages, soonest first.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

func (t *ListScheduledTool) Run(ctx context.Context, args json.RawMessage) string {
	pending, err := t.store.ListPending()
	if err != nil {
		return errorPayload("list failed: %v", err)
	}
	type entry struct {
		ID            string `json:"id"`
		RecipientID   string `json:"recipient_id"`
		RecipientName string `json:"recipient_name,omitempty"`
		Message       string `json:"message"`
		SendAt        string `json:"send_at"`
	}
	entries := make([]entry, 0, len(pending))
	for _, rec := range pending {
		entries = append(entries, entry{
			ID:            rec.ID,
			RecipientID:   rec.RecipientID,
			RecipientName: rec.RecipientName,
			Message:       rec.Text,
			SendAt:        rec.SendAt.Format(time.RFC3339),
		})
	}
	return jsonResult(map[string]any{
		"count":    len(entries),
		"messages": entries,
	})
}

// CancelScheduledTool cancels a pending delivery by id.
type CancelScheduledTool struct {
	store *delivery.Store
}

func NewCancelScheduledTool(store *delivery.Store) *CancelScheduledTool {
	return &CancelScheduledTool{store: store}
}

func (t *CancelScheduledTool) Def() provider.ToolDef {
	return provider.ToolDef{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        "cancel_scheduled_message",
			Description: "Cancel a pending scheduled message by its id.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "The scheduled message id to cancel",
					},
				},
				"required": []string{"id"},
			},
		},
	}
}

func (t *CancelScheduledTool) Run(ctx context.Context, args json.RawMessage) string {
	var params struct {
		ID string `json:"id"`
	}
	if msg := parseArgs(args, &params); msg != "" {
		return msg
	}
	if params.ID == "" {
		return errorPayload("id is required")
	}
	if err := t.store.Cancel(params.ID); err != nil {
		var conflict *delivery.ConflictError
		switch {
		case errors.Is(err, delivery.ErrNotFound):
			return errorPayload("no scheduled message with id %s", params.ID)
		case errors.As(err, &conflict):
			return errorPayload("cannot cancel: message %s is already %s", conflict.ID, conflict.Status)
		default:
			return errorPayload("cancel failed: %v", err)
		}
	}
	return jsonResult(map[string]string{
		"status": "cancelled",
		"id":     params.ID,
	})
}

// ScheduleBroadcastTool schedules the same message to several recipients with
// a stagger between sends.
type ScheduleBroadcastTool struct {
	store *delivery.Store
}

func NewScheduleBroadcastTool(store *delivery.Store) *ScheduleBroadcastTool {
	return &ScheduleBroadcastTool{store: store}
}

func (t *ScheduleBroadcastTool) Def() provider.ToolDef {
	return provider.ToolDef{
		Type: "function",
		Function: provider.FunctionDef{
			Name:        "schedule_broadcast",
			Description: "Schedule a message to up to 50 recipients, staggering sends to avoid bursts. Each recipient needs an id and a message.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"recipients": map[string]any{
						"type":        "array",
						"description": "The recipients, each with recipient_id, optional recipient_name, and message",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"recipient_id":   map[string]any{"type": "string"},
								"recipient_name": map[string]any{"type": "string"},
								"message":        map[string]any{"type": "string"},
							},
							"required": []string{"recipient_id", "message"},
						},
					},
					"send_at": map[string]any{
						"type":        "string",
						"description": "When the first send happens, RFC 3339 or local time",
					},
					"stagger_seconds": map[string]any{
						"type":        "integer",
						"description": "Seconds between consecutive sends, clamped to 15..300 (default 45)",
					},
				},
				"required": []string{"recipients", "send_at"},
			},
		},
	}
}

func (t *ScheduleBroadcastTool) Run(ctx context.Context, args json.RawMessage) string {
	var params struct {
		Recipients     []delivery.Recipient `json:"recipients"`
		SendAt         string               `json:"send_at"`
		StaggerSeconds int                  `json:"stagger_seconds"`
	}
	if msg := parseArgs(args, &params); msg != "" {
		return msg
	}
	created, stagger, err := t.store.PlanBroadcast(params.Recipients, params.SendAt, params.StaggerSeconds)
	if err != nil {
		return errorPayload("broadcast failed: %v", err)
	}
	ids := make([]string, 0, len(created))
	var first, last string
	for i, rec := range created {
		ids = append(ids, rec.ID)
		if i == 0 {
			first = rec.SendAt.Format(time.RFC3339)
		}
		last = rec.SendAt.Format(time.RFC3339)
	}
	return jsonResult(map[string]any{
		"status":          "scheduled",
		"scheduled":       len(created),
		"skipped":         len(params.Recipients) - len(created),
		"stagger_seconds": stagger,
		"first_send_at":   first,
		"last_send_at":    last,
		"ids":             ids,
	})
}
