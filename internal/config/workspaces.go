package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codefionn/wterm/internal/layout"
	"github.com/codefionn/wterm/internal/logger"
)

var (
	// ErrWorkspaceNotFound is returned for an unknown workspace id.
	ErrWorkspaceNotFound = errors.New("workspace not found")
	// ErrLastWorkspace is returned when deleting the only workspace.
	ErrLastWorkspace = errors.New("cannot delete the last workspace")
)

// WorkspaceUpdate is a partial update of a workspace. Nil fields are left
// unchanged; a non-nil Layout replaces the stored tree (JSON null clears it).
type WorkspaceUpdate struct {
	Name     *string         `json:"name,omitempty"`
	Icon     *string         `json:"icon,omitempty"`
	Sessions *[]string       `json:"sessions,omitempty"`
	Layout   json.RawMessage `json:"layout,omitempty"`
	Cwd      *string         `json:"cwd,omitempty"`
}

// Workspaces returns the workspace list and the active workspace id.
func (s *Store) Workspaces() ([]Workspace, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Workspace(nil), s.cfg.Workspaces...), s.cfg.ActiveWorkspace
}

// CreateWorkspace adds a workspace and persists the config.
func (s *Store) CreateWorkspace(name, icon, cwd string) (Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" {
		name = "New workspace"
	}
	if icon == "" {
		icon = "📁"
	}

	now := time.Now()
	ws := Workspace{
		ID:        fmt.Sprintf("workspace-%d", now.UnixMilli()),
		Name:      name,
		Icon:      icon,
		Sessions:  []string{},
		Cwd:       cwd,
		CreatedAt: now.Format(time.RFC3339),
		UpdatedAt: now.Format(time.RFC3339),
	}
	s.cfg.Workspaces = append(s.cfg.Workspaces, ws)
	if err := s.saveLocked(); err != nil {
		return Workspace{}, err
	}
	return ws, nil
}

// UpdateWorkspace applies a partial update and persists the config.
func (s *Store) UpdateWorkspace(id string, update WorkspaceUpdate) (Workspace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cfg.Workspaces {
		ws := &s.cfg.Workspaces[i]
		if ws.ID != id {
			continue
		}
		if update.Name != nil {
			ws.Name = *update.Name
		}
		if update.Icon != nil {
			ws.Icon = *update.Icon
		}
		if update.Sessions != nil {
			ws.Sessions = append([]string(nil), (*update.Sessions)...)
		}
		if update.Layout != nil {
			ws.Layout = append(json.RawMessage(nil), update.Layout...)
		}
		if update.Cwd != nil {
			ws.Cwd = *update.Cwd
		}
		ws.UpdatedAt = time.Now().Format(time.RFC3339)
		if err := s.saveLocked(); err != nil {
			return Workspace{}, err
		}
		return *ws, nil
	}
	return Workspace{}, ErrWorkspaceNotFound
}

// DeleteWorkspace removes a workspace. The last remaining workspace cannot
// be deleted; deleting the active one moves the active marker to the first
// survivor.
func (s *Store) DeleteWorkspace(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cfg.Workspaces) <= 1 {
		return ErrLastWorkspace
	}

	index := -1
	for i := range s.cfg.Workspaces {
		if s.cfg.Workspaces[i].ID == id {
			index = i
			break
		}
	}
	if index == -1 {
		return ErrWorkspaceNotFound
	}

	s.cfg.Workspaces = append(s.cfg.Workspaces[:index], s.cfg.Workspaces[index+1:]...)
	if s.cfg.ActiveWorkspace == id {
		s.cfg.ActiveWorkspace = s.cfg.Workspaces[0].ID
	}
	return s.saveLocked()
}

// SetActiveWorkspace marks a workspace as active and persists the config.
func (s *Store) SetActiveWorkspace(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cfg.Workspaces {
		if s.cfg.Workspaces[i].ID == id {
			s.cfg.ActiveWorkspace = id
			return s.saveLocked()
		}
	}
	return ErrWorkspaceNotFound
}

// WorkspaceCwd returns the default spawn directory of the active
// workspace, or "" when none is configured.
func (s *Store) WorkspaceCwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.cfg.Workspaces {
		if s.cfg.Workspaces[i].ID == s.cfg.ActiveWorkspace {
			return s.cfg.Workspaces[i].Cwd
		}
	}
	return ""
}

// ReconcileWorkspaces prunes session ids that are absent from the live
// roster out of every workspace's session list and layout tree, persisting
// the cleaned result. Called whenever the roster changes so the stored
// arrangements never point at dead sessions.
func (s *Store) ReconcileWorkspaces(liveIDs []string) error {
	live := make(map[string]bool, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for i := range s.cfg.Workspaces {
		ws := &s.cfg.Workspaces[i]

		kept := ws.Sessions[:0:0]
		for _, id := range ws.Sessions {
			if live[id] {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(ws.Sessions) {
			ws.Sessions = kept
			changed = true
		}

		if len(ws.Layout) == 0 {
			continue
		}
		tree, err := layout.Unmarshal(ws.Layout)
		if err != nil {
			logger.Warn("workspace %s has an unreadable layout, clearing it: %v", ws.ID, err)
			ws.Layout = nil
			changed = true
			continue
		}
		pruned := false
		for _, id := range layout.SessionIDs(tree) {
			if !live[id] {
				tree = layout.Remove(tree, id)
				pruned = true
			}
		}
		if !pruned {
			continue
		}
		changed = true
		if tree == nil {
			ws.Layout = json.RawMessage("null")
		} else {
			data, err := json.Marshal(tree)
			if err != nil {
				return fmt.Errorf("encoding reconciled layout for %s: %w", ws.ID, err)
			}
			ws.Layout = data
		}
		ws.UpdatedAt = time.Now().Format(time.RFC3339)
	}

	if !changed {
		return nil
	}
	return s.saveLocked()
}
