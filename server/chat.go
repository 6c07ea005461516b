package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/msgpilot/msgpilot/engine"
	"github.com/msgpilot/msgpilot/history"
	"github.com/msgpilot/msgpilot/internal/runtimecfg"
	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/provider"
)

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// prepareConversation validates the inbound message, resolves or creates the
// conversation, stores the user message, and returns the history to run.
func (s *Server) prepareConversation(req chatRequest) (convID string, isNew bool, msgs []provider.Message, err error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return "", false, nil, fmt.Errorf("empty message")
	}
	if len(text) > runtimecfg.ServerMaxMessageLen {
		return "", false, nil, fmt.Errorf("message too long (max %d characters)", runtimecfg.ServerMaxMessageLen)
	}

	convID = req.ConversationID
	if convID == "" || !s.conversations.Exists(convID) {
		conv, createErr := s.conversations.Create(history.AutoTitle(text))
		if createErr != nil {
			return "", false, nil, createErr
		}
		convID = conv.ID
		isNew = true
	}

	if err := s.conversations.Append(convID, provider.UserMessage(text)); err != nil {
		return "", false, nil, err
	}
	msgs, err = s.conversations.Messages(convID)
	if err != nil {
		return "", false, nil, err
	}
	return convID, isNew, msgs, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	convID, _, msgs, err := s.prepareConversation(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	type toolCallView struct {
		Name   string `json:"name"`
		Args   string `json:"arguments"`
		Result string `json:"result,omitempty"`
	}
	var toolCalls []toolCallView
	var finalText string

	err = s.engine.Run(r.Context(), msgs, func(ev engine.Event) {
		switch ev.Type {
		case engine.EventPersist:
			if saveErr := s.conversations.Append(convID, *ev.Message); saveErr != nil {
				logger.Error("message persist failed", "conversation", convID, "error", saveErr)
			}
		case engine.EventToolCall:
			toolCalls = append(toolCalls, toolCallView{Name: ev.Tool, Args: ev.Args})
		case engine.EventToolResult:
			for i := range toolCalls {
				if toolCalls[i].Name == ev.Tool && toolCalls[i].Result == "" {
					toolCalls[i].Result = ev.Content
					break
				}
			}
		case engine.EventMessage, engine.EventError:
			finalText = ev.Content
		}
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}

	if finalText != "" {
		if saveErr := s.conversations.Append(convID, provider.AssistantMessage(finalText)); saveErr != nil {
			logger.Error("assistant message persist failed", "conversation", convID, "error", saveErr)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversation_id": convID,
		"response":        finalText,
		"tool_calls":      toolCalls,
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	convID, isNew, msgs, err := s.prepareConversation(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sendEvent := func(v any) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	sendEvent(map[string]any{
		"type":            "conv_id",
		"conversation_id": convID,
		"is_new":          isNew,
	})

	var finalText string
	_ = s.engine.Run(r.Context(), msgs, func(ev engine.Event) {
		if ev.Type == engine.EventPersist {
			if saveErr := s.conversations.Append(convID, *ev.Message); saveErr != nil {
				logger.Error("message persist failed", "conversation", convID, "error", saveErr)
			}
			return
		}
		sendEvent(ev)
		if ev.Type == engine.EventMessage {
			finalText = ev.Content
		}
	})

	if finalText != "" {
		if saveErr := s.conversations.Append(convID, provider.AssistantMessage(finalText)); saveErr != nil {
			logger.Error("assistant message persist failed", "conversation", convID, "error", saveErr)
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string `json:"text"`
		Tone     string `json:"tone"`
		Language string `json:"language"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "empty text")
		return
	}
	if len(text) > runtimecfg.ServerMaxRewriteLen {
		writeError(w, http.StatusBadRequest, "text too long (max %d characters)", runtimecfg.ServerMaxRewriteLen)
		return
	}

	rewritten, err := s.rewriter.Rewrite(r.Context(), text, req.Tone, req.Language)
	if err != nil {
		writeError(w, http.StatusBadGateway, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rewritten": rewritten})
}
