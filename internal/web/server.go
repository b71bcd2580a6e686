package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/wterm/internal/config"
	"github.com/codefionn/wterm/internal/logger"
	"github.com/codefionn/wterm/internal/session"
)

// Server is the HTTP and WebSocket front end: REST endpoints for session,
// messaging, workspace and settings management, plus the /ws upgrade that
// streams live session traffic. It implements session.Notifier so manager
// events reach every connected viewer.
type Server struct {
	port    int
	store   *config.Store
	manager *session.Manager
	hub     *Hub

	router     *httprouter.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// NewServer creates the server and wires itself in as the manager's event
// sink.
func NewServer(port int, store *config.Store, manager *session.Manager) *Server {
	s := &Server{
		port:    port,
		store:   store,
		manager: manager,
		hub:     NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Viewers may be served from a different origin than the API.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: withCORS(s.router),
	}

	manager.SetNotifier(s)
	return s
}

// Start serves HTTP until Stop is called. Blocking.
func (s *Server) Start() error {
	logger.Info("Server listening on port %d", s.port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts the HTTP server down and stops the hub.
func (s *Server) Stop(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.hub.Stop()
	return err
}

// Handler exposes the full HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return withCORS(s.router)
}

// RosterChanged implements session.Notifier. Every fresh roster is also
// the moment to prune dead session ids out of the persisted workspaces.
func (s *Server) RosterChanged(roster []session.Info) {
	live := make([]string, 0, len(roster))
	for _, info := range roster {
		live = append(live, info.ID)
	}
	if err := s.store.ReconcileWorkspaces(live); err != nil {
		logger.Error("Workspace reconciliation failed: %v", err)
	}
	s.hub.Broadcast(newSessionsFrame(roster))
}

// Output implements session.Notifier.
func (s *Server) Output(sessionID, data string) {
	s.hub.Broadcast(newOutputFrame(sessionID, data))
}

// Exited implements session.Notifier.
func (s *Server) Exited(sessionID string, exitCode int) {
	s.hub.Broadcast(newExitFrame(sessionID, exitCode))
}

// MessageSent implements session.Notifier.
func (s *Server) MessageSent(msg session.Message) {
	s.hub.Broadcast(newMessageFrame(msg))
}

// handleWebSocket upgrades the connection and starts the pumps. The
// current roster is queued first so a new viewer renders without waiting
// for the next change.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.manager)
	s.hub.Register(client)
	client.sendFrame(newSessionsFrame(s.manager.List()))

	go client.WritePump()
	go client.ReadPump()
}

// withCORS allows browser viewers served from another origin to call the
// API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
