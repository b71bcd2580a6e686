// Package session implements the lifecycle of pseudo-terminal backed shell
// sessions and the messaging between them: spawn/restart/kill, bounded
// output buffering with replay, guarded writes, slash-command interception,
// and fire-and-forget or best-effort request/response sends.
package session

import (
	"sync"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusRunning means the underlying process is alive.
	StatusRunning Status = "running"
	// StatusExited means the process terminated; only restart leaves it.
	StatusExited Status = "exited"
)

// Session is one pseudo-terminal backed process plus its metadata. All
// mutable fields are guarded by mu because pty callbacks, HTTP handlers,
// and websocket readers touch them from different goroutines.
type Session struct {
	id        string
	createdAt time.Time

	mu          sync.Mutex
	status      Status
	exitCode    *int
	command     string // initial command typed after spawn, "" for a bare shell
	cwd         string
	proc        Process
	generation  int  // bumped on restart so stale reader goroutines stand down
	initialized bool // first output seen since (re)spawn
	deleted     bool // registry removal won; a racing restart must not respawn

	// streamMu serializes buffer appends with their transport fan-out, so
	// an attach can snapshot the buffer and replay it with no output frame
	// slipping between snapshot and replay.
	streamMu sync.Mutex

	buffer *Buffer
	input  inputFilter

	viewersMu sync.Mutex
	viewers   map[string]struct{} // transport connection ids attached to this session
}

// Info is the roster entry for one session.
type Info struct {
	ID        string `json:"id"`
	Status    Status `json:"status"`
	CreatedAt string `json:"createdAt"`
	Command   string `json:"command"`
	ExitCode  *int   `json:"exitCode,omitempty"`
	Cwd       string `json:"cwd,omitempty"`
}

func (s *Session) info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exitCode *int
	if s.exitCode != nil {
		code := *s.exitCode
		exitCode = &code
	}
	return Info{
		ID:        s.id,
		Status:    s.status,
		CreatedAt: s.createdAt.Format(time.RFC3339),
		Command:   s.command,
		ExitCode:  exitCode,
		Cwd:       s.cwd,
	}
}

func (s *Session) currentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) addViewer(connID string) {
	s.viewersMu.Lock()
	defer s.viewersMu.Unlock()
	if s.viewers == nil {
		s.viewers = make(map[string]struct{})
	}
	s.viewers[connID] = struct{}{}
}

func (s *Session) removeViewer(connID string) {
	s.viewersMu.Lock()
	defer s.viewersMu.Unlock()
	delete(s.viewers, connID)
}

func (s *Session) viewerCount() int {
	s.viewersMu.Lock()
	defer s.viewersMu.Unlock()
	return len(s.viewers)
}
