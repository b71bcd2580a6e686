// Package config owns the durable state of a wterm server: the listen
// port, buffer and timing knobs, shortcuts, UI preferences, and the
// workspace list with its embedded layout trees. Sessions are deliberately
// not part of it; they do not survive a server restart.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// Shortcut is a user-defined quick-launch entry.
type Shortcut struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Command string `json:"command"`
	Icon    string `json:"icon"`
}

// UILayout holds viewer chrome preferences.
type UILayout struct {
	ShowSidebar      bool   `json:"showSidebar"`
	ShowHistoryPanel bool   `json:"showHistoryPanel"`
	SidebarPosition  string `json:"sidebarPosition"`
	DefaultView      string `json:"defaultView"`
}

// TerminalSettings holds terminal rendering preferences.
type TerminalSettings struct {
	FontFamily string `json:"fontFamily"`
	FontSize   int    `json:"fontSize"`
}

// Workspace groups sessions under one shared split-pane arrangement.
// The session list and the layout tree hold soft references: sessions can
// vanish underneath them and are pruned on reconciliation.
type Workspace struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Icon      string          `json:"icon"`
	Sessions  []string        `json:"sessions"`
	Layout    json.RawMessage `json:"layout"`
	Cwd       string          `json:"cwd,omitempty"`
	CreatedAt string          `json:"createdAt"`
	UpdatedAt string          `json:"updatedAt"`
}

// Config is the persisted configuration file structure.
type Config struct {
	Port             int              `json:"port"`
	MaxHistorySize   int              `json:"maxHistorySize"`
	BufferSize       int              `json:"bufferSize"`
	EnterDelayMs     int              `json:"enterDelayMs"`
	CommandDelayMs   int              `json:"commandDelayMs"`
	ResponseSettleMs int              `json:"responseSettleMs"`
	Shell            string           `json:"shell,omitempty"`
	Shortcuts        []Shortcut       `json:"shortcuts"`
	UILayout         UILayout         `json:"uiLayout"`
	Terminal         TerminalSettings `json:"terminal"`
	Workspaces       []Workspace      `json:"workspaces,omitempty"`
	ActiveWorkspace  string           `json:"activeWorkspaceId,omitempty"`
	DebugLog         bool             `json:"debugLog,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists yet.
func DefaultConfig() *Config {
	return &Config{
		Port:             3000,
		MaxHistorySize:   50,
		BufferSize:       10000,
		EnterDelayMs:     100,
		CommandDelayMs:   500,
		ResponseSettleMs: 2000,
		Shortcuts: []Shortcut{
			{ID: "shell", Name: "Shell", Command: "", Icon: "💻"},
		},
		UILayout: UILayout{
			ShowSidebar:     true,
			SidebarPosition: "left",
			DefaultView:     "split",
		},
		Terminal: TerminalSettings{
			FontFamily: "monospace",
			FontSize:   14,
		},
	}
}

// Store loads, serves, and persists the configuration. All access goes
// through the store so that concurrent HTTP handlers and the session
// manager see a consistent view.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// Load reads the config file at path, creating it with defaults when it
// does not exist. Unknown fields are preserved only until the next save.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.cfg = DefaultConfig()
		s.migrate()
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	s.cfg = cfg
	if s.migrate() {
		if err := s.saveLocked(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// migrate fills in state older config files lack. Returns true when the
// config changed and should be written back.
func (s *Store) migrate() bool {
	changed := false
	if len(s.cfg.Workspaces) == 0 {
		now := time.Now().Format(time.RFC3339)
		s.cfg.Workspaces = []Workspace{{
			ID:        "workspace-default",
			Name:      "Main",
			Icon:      "📁",
			Sessions:  []string{},
			CreatedAt: now,
			UpdatedAt: now,
		}}
		s.cfg.ActiveWorkspace = "workspace-default"
		changed = true
	}
	if s.cfg.ActiveWorkspace == "" {
		s.cfg.ActiveWorkspace = s.cfg.Workspaces[0].ID
		changed = true
	}
	return changed
}

// Get returns a copy of the current configuration.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Config {
	cfg := *s.cfg
	cfg.Shortcuts = append([]Shortcut(nil), s.cfg.Shortcuts...)
	cfg.Workspaces = append([]Workspace(nil), s.cfg.Workspaces...)
	return cfg
}

// Path returns the config file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing config %s: %w", s.path, err)
	}
	return nil
}

// SettingsUpdate is a partial update of the user-editable settings.
// Nil fields are left unchanged.
type SettingsUpdate struct {
	Shortcuts *[]Shortcut       `json:"shortcuts,omitempty"`
	UILayout  *UILayout         `json:"uiLayout,omitempty"`
	Terminal  *TerminalSettings `json:"terminal,omitempty"`
	DebugLog  *bool             `json:"debugLog,omitempty"`
}

// UpdateSettings applies a partial settings update and persists it.
func (s *Store) UpdateSettings(update SettingsUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if update.Shortcuts != nil {
		s.cfg.Shortcuts = append([]Shortcut(nil), (*update.Shortcuts)...)
	}
	if update.UILayout != nil {
		s.cfg.UILayout = *update.UILayout
	}
	if update.Terminal != nil {
		s.cfg.Terminal = *update.Terminal
	}
	if update.DebugLog != nil {
		s.cfg.DebugLog = *update.DebugLog
	}
	return s.saveLocked()
}

// Reload re-reads the config file in place, keeping the in-memory view in
// sync with external edits. Used by the file watcher.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("reloading config %s: %w", s.path, err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.migrate()
	return nil
}
