package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/msgpilot/msgpilot/delivery"
	"github.com/msgpilot/msgpilot/history"
	"github.com/msgpilot/msgpilot/settings"
)

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := s.conversations.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	type view struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
		Preview   string    `json:"preview"`
		MsgCount  int       `json:"msg_count"`
	}
	views := make([]view, 0, len(convs))
	for _, c := range convs {
		views = append(views, view{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
			Preview:   c.Preview,
			MsgCount:  c.UserMessages,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": views})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	_ = decodeBody(r, &req)
	conv, err := s.conversations.Create(req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs, err := s.conversations.Messages(id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "messages": msgs})
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Title string `json:"title"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if err := s.conversations.Rename(id, req.Title); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "renamed", "id": id})
}

func (s *Server) handleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.conversations.Delete(id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

type scheduledView struct {
	ID            string `json:"id"`
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name,omitempty"`
	Message       string `json:"message"`
	SendAt        string `json:"send_at"`
	Status        string `json:"status"`
}

func toScheduledView(rec delivery.Delivery) scheduledView {
	return scheduledView{
		ID:            rec.ID,
		RecipientID:   rec.RecipientID,
		RecipientName: rec.RecipientName,
		Message:       rec.Text,
		SendAt:        rec.SendAt.Format(time.RFC3339),
		Status:        string(rec.Status),
	}
}

func (s *Server) handleListScheduled(w http.ResponseWriter, r *http.Request) {
	pending, err := s.deliveries.ListPending()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	views := make([]scheduledView, 0, len(pending))
	for _, rec := range pending {
		views = append(views, toScheduledView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduled_messages": views,
		"count":              len(views),
	})
}

func (s *Server) handleInsertScheduled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipientID   string `json:"recipient_id"`
		RecipientName string `json:"recipient_name"`
		Message       string `json:"message"`
		SendAt        string `json:"send_at"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	rec, err := s.deliveries.Insert(req.RecipientID, req.RecipientName, req.Message, req.SendAt)
	if err != nil {
		var verr *delivery.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "%v", verr)
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduledView(*rec))
}

func (s *Server) handleCancelScheduled(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deliveries.Cancel(id); err != nil {
		var conflict *delivery.ConflictError
		switch {
		case errors.Is(err, delivery.ErrNotFound):
			writeError(w, http.StatusNotFound, "scheduled message not found")
		case errors.As(err, &conflict):
			writeError(w, http.StatusConflict, "already %s", conflict.Status)
		default:
			writeError(w, http.StatusInternalServerError, "%v", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled", "id": id})
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Recipients     []delivery.Recipient `json:"recipients"`
		SendAt         string               `json:"send_at"`
		StaggerSeconds int                  `json:"stagger_seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	created, stagger, err := s.deliveries.PlanBroadcast(req.Recipients, req.SendAt, req.StaggerSeconds)
	if err != nil {
		var verr *delivery.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, "%v", verr)
			return
		}
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	views := make([]scheduledView, 0, len(created))
	for _, rec := range created {
		views = append(views, toScheduledView(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scheduled":       views,
		"count":           len(views),
		"skipped":         len(req.Recipients) - len(views),
		"stagger_seconds": stagger,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.settings.Get())
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Settings
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	updated, err := s.settings.Update(patch)
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
