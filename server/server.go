// Package server exposes the assistant over a local HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/msgpilot/msgpilot/bridge"
	"github.com/msgpilot/msgpilot/delivery"
	"github.com/msgpilot/msgpilot/engine"
	"github.com/msgpilot/msgpilot/history"
	"github.com/msgpilot/msgpilot/internal/runtimecfg"
	"github.com/msgpilot/msgpilot/logger"
	"github.com/msgpilot/msgpilot/settings"
)

// Server routes API requests to the engine, the stores, and the bridge.
type Server struct {
	addr          string
	engine        *engine.Engine
	rewriter      *engine.Rewriter
	conversations *history.Store
	deliveries    *delivery.Store
	worker        *delivery.Worker
	bridge        *bridge.Client
	settings      *settings.Manager

	server *http.Server
	wg     sync.WaitGroup
}

// Options carries the server's collaborators.
type Options struct {
	Addr          string
	Engine        *engine.Engine
	Rewriter      *engine.Rewriter
	Conversations *history.Store
	Deliveries    *delivery.Store
	Worker        *delivery.Worker
	Bridge        *bridge.Client
	Settings      *settings.Manager
}

// New creates a server from its collaborators.
func New(opts Options) *Server {
	addr := opts.Addr
	if addr == "" {
		addr = runtimecfg.ServerDefaultAddr
	}
	return &Server{
		addr:          addr,
		engine:        opts.Engine,
		rewriter:      opts.Rewriter,
		conversations: opts.Conversations,
		deliveries:    opts.Deliveries,
		worker:        opts.Worker,
		bridge:        opts.Bridge,
		settings:      opts.Settings,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)

	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/chat/stream", s.handleChatStream)
	mux.HandleFunc("POST /api/rewrite", s.handleRewrite)

	mux.HandleFunc("GET /api/conversations", s.handleListConversations)
	mux.HandleFunc("POST /api/conversations", s.handleCreateConversation)
	mux.HandleFunc("GET /api/conversations/{id}", s.handleGetConversation)
	mux.HandleFunc("PATCH /api/conversations/{id}", s.handleRenameConversation)
	mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDeleteConversation)

	mux.HandleFunc("GET /api/scheduled", s.handleListScheduled)
	mux.HandleFunc("POST /api/scheduled", s.handleInsertScheduled)
	mux.HandleFunc("DELETE /api/scheduled/{id}", s.handleCancelScheduled)
	mux.HandleFunc("POST /api/scheduled/broadcast", s.handleBroadcast)

	mux.HandleFunc("GET /api/bridge/status", s.handleBridgeStatus)

	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /api/settings", s.handlePutSettings)

	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.addr,
		Handler: s.routes(),
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen failed on %s: %w", s.addr, err)
	}
	logger.Info("api server started", "addr", ln.Addr().String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if serveErr := s.server.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("api server error", "error", serveErr)
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the server down.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), runtimecfg.ServerShutdownGrace)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("api server shutdown error", "error", err)
	}
	s.wg.Wait()
	logger.Info("api server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"worker_running": s.worker != nil && s.worker.IsRunning(),
	})
}

func (s *Server) handleBridgeStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(s.bridge.Status(r.Context())))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
