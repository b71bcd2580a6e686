package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/wterm/internal/config"
	"github.com/codefionn/wterm/internal/logger"
	"github.com/codefionn/wterm/internal/session"
)

func (s *Server) buildRouter() *httprouter.Router {
	router := httprouter.New()

	router.GET("/ws", s.handleWebSocket)

	router.GET("/api/sessions", s.handleListSessions)
	router.POST("/api/sessions", s.handleCreateSession)
	router.DELETE("/api/sessions/:id", s.handleDeleteSession)
	router.POST("/api/sessions/:id/restart", s.handleRestartSession)
	router.GET("/api/sessions/:id/buffer", s.handleSessionBuffer)

	router.POST("/api/send", s.handleSend)
	router.GET("/api/history", s.handleHistory)

	router.GET("/api/workspaces", s.handleListWorkspaces)
	router.POST("/api/workspaces", s.handleCreateWorkspace)
	router.PATCH("/api/workspaces/:id", s.handleUpdateWorkspace)
	router.DELETE("/api/workspaces/:id", s.handleDeleteWorkspace)
	router.POST("/api/workspaces/active", s.handleSetActiveWorkspace)

	router.GET("/config", s.handleGetConfig)
	router.PATCH("/config", s.handleUpdateConfig)

	return router
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": message,
	})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"sessions": s.manager.List()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Command string `json:"command"`
		Cwd     string `json:"cwd"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	cwd := req.Cwd
	if cwd == "" {
		cwd = s.store.WorkspaceCwd()
	}

	info, err := s.manager.Create(req.Command, cwd)
	if err != nil {
		logger.Error("Session creation failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"sessionId": info.ID,
	})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	if !s.manager.Delete(ps.ByName("id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRestartSession(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if err := s.manager.Restart(id); err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, session.ErrSessionRunning):
			writeError(w, http.StatusBadRequest, "session is still running")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessionId": id})
}

// handleSessionBuffer serves incremental scrollback reads. fromPosition is
// an absolute stream offset from a previous response; omitted or zero
// returns the whole buffer.
func (s *Server) handleSessionBuffer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var from int64
	if raw := r.URL.Query().Get("fromPosition"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid fromPosition")
			return
		}
		from = parsed
	}

	content, pos, err := s.manager.BufferRange(ps.ByName("id"), from)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content":         content,
		"currentPosition": pos,
	})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		From            string `json:"from"`
		To              string `json:"to"`
		Message         string `json:"message"`
		WaitForResponse bool   `json:"waitForResponse"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.To == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "to and message are required")
		return
	}
	if req.From == "" {
		req.From = session.SenderBrowser
	}

	result, err := s.manager.Send(r.Context(), req.From, req.To, req.Message, req.WaitForResponse)
	if err != nil {
		var unavailable *session.TargetUnavailableError
		if errors.As(err, &unavailable) {
			available := unavailable.Available
			if available == nil {
				available = []string{}
			}
			writeJSON(w, http.StatusNotFound, map[string]any{
				"success":           false,
				"message":           unavailable.Error(),
				"availableSessions": available,
			})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]any{
		"success":   true,
		"messageId": result.MessageID,
	}
	if req.WaitForResponse {
		resp["output"] = result.Output
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	msgs := s.manager.History(limit, r.URL.Query().Get("sessionId"))
	if msgs == nil {
		msgs = []session.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *Server) handleListWorkspaces(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	workspaces, activeID := s.store.Workspaces()
	writeJSON(w, http.StatusOK, map[string]any{
		"workspaces":        workspaces,
		"activeWorkspaceId": activeID,
	})
}

func (s *Server) handleCreateWorkspace(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Name string `json:"name"`
		Icon string `json:"icon"`
		Cwd  string `json:"cwd"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws, err := s.store.CreateWorkspace(req.Name, req.Icon, req.Cwd)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"workspace": ws,
	})
}

func (s *Server) handleUpdateWorkspace(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var update config.WorkspaceUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ws, err := s.store.UpdateWorkspace(ps.ByName("id"), update)
	if err != nil {
		if errors.Is(err, config.ErrWorkspaceNotFound) {
			writeError(w, http.StatusNotFound, "workspace not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"workspace": ws,
	})
}

func (s *Server) handleDeleteWorkspace(w http.ResponseWriter, _ *http.Request, ps httprouter.Params) {
	if err := s.store.DeleteWorkspace(ps.ByName("id")); err != nil {
		switch {
		case errors.Is(err, config.ErrLastWorkspace):
			writeError(w, http.StatusBadRequest, "cannot delete the last workspace")
		case errors.Is(err, config.ErrWorkspaceNotFound):
			writeError(w, http.StatusNotFound, "workspace not found")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleSetActiveWorkspace(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		WorkspaceID string `json:"workspaceId"`
	}
	if err := decodeBody(r, &req); err != nil || req.WorkspaceID == "" {
		writeError(w, http.StatusBadRequest, "workspaceId is required")
		return
	}

	if err := s.store.SetActiveWorkspace(req.WorkspaceID); err != nil {
		if errors.Is(err, config.ErrWorkspaceNotFound) {
			writeError(w, http.StatusNotFound, "workspace not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.store.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var update config.SettingsUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.store.UpdateSettings(update); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// decodeBody parses a JSON request body; an empty body decodes as the
// zero value.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == io.EOF {
		return nil
	}
	return err
}
