package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/codefionn/wterm/internal/logger"
)

const (
	defaultCols = 120
	defaultRows = 30

	// rosterFallbackDelay forces a roster broadcast if a fresh pty emits
	// nothing; viewers would otherwise never learn the session exists.
	rosterFallbackDelay = time.Second
)

// Notifier receives the manager's transport-facing events. The web hub
// implements it; a nil notifier is tolerated so the manager can be used
// headless (tests, CLI tooling).
type Notifier interface {
	// RosterChanged carries a full-replacement snapshot, not a diff.
	RosterChanged(roster []Info)
	Output(sessionID, data string)
	Exited(sessionID string, exitCode int)
	MessageSent(msg Message)
}

// Options configures a Manager. Zero values fall back to the defaults the
// original deployment used.
type Options struct {
	// APIBaseURL is injected into every session's environment as
	// WTERM_API_URL so tools launched inside a session can call back into
	// the messaging API under their own identity (WTERM_SESSION_ID).
	APIBaseURL string
	// Shell is the program spawned per session; defaults to $SHELL or /bin/sh.
	Shell string
	// BufferSize caps the scrollback buffer in bytes.
	BufferSize int
	// MaxHistory caps the message history ring.
	MaxHistory int
	// EnterDelay is the gap between a message payload and its synthetic
	// line terminator.
	EnterDelay time.Duration
	// CommandDelay is how long to let a fresh shell settle before typing
	// the initial command into it.
	CommandDelay time.Duration
	// ResponseSettle is how long waitForResponse capture waits before
	// reading the target's buffer.
	ResponseSettle time.Duration
	// Start spawns the underlying process; defaults to StartPTY.
	Start StartFunc
}

func (o *Options) fillDefaults() {
	if o.Shell == "" {
		o.Shell = os.Getenv("SHELL")
	}
	if o.Shell == "" {
		o.Shell = "/bin/sh"
	}
	if o.BufferSize <= 0 {
		o.BufferSize = 10000
	}
	if o.MaxHistory <= 0 {
		o.MaxHistory = 50
	}
	if o.EnterDelay <= 0 {
		o.EnterDelay = 100 * time.Millisecond
	}
	if o.CommandDelay <= 0 {
		o.CommandDelay = 500 * time.Millisecond
	}
	if o.ResponseSettle <= 0 {
		o.ResponseSettle = 2 * time.Second
	}
	if o.Start == nil {
		o.Start = StartPTY
	}
}

// Manager owns the session registry. Ids come from an in-process counter
// and are not persisted; a server restart forgets all sessions.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*Session
	order    []string // insertion order, for a stable roster
	counter  int

	notifierMu sync.RWMutex
	notifier   Notifier

	history *messageLog
}

// NewManager creates a Manager with the given options.
func NewManager(opts Options) *Manager {
	opts.fillDefaults()
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*Session),
		history:  newMessageLog(opts.MaxHistory),
	}
}

// SetNotifier wires the transport-facing event sink.
func (m *Manager) SetNotifier(n Notifier) {
	m.notifierMu.Lock()
	m.notifier = n
	m.notifierMu.Unlock()
}

func (m *Manager) getNotifier() Notifier {
	m.notifierMu.RLock()
	defer m.notifierMu.RUnlock()
	return m.notifier
}

// Create spawns a new session. A non-empty command is typed into the shell
// after a short settle delay; cwd defaults to the server's working
// directory when empty.
func (m *Manager) Create(command, cwd string) (Info, error) {
	m.mu.Lock()
	m.counter++
	id := fmt.Sprintf("session-%d", m.counter)
	m.mu.Unlock()

	s := &Session{
		id:        id,
		createdAt: time.Now(),
		status:    StatusRunning,
		command:   command,
		cwd:       cwd,
		buffer:    NewBuffer(m.opts.BufferSize),
	}

	if err := m.spawn(s); err != nil {
		return Info{}, fmt.Errorf("spawning session %s: %w", id, err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.order = append(m.order, id)
	m.mu.Unlock()

	logger.Info("created session %s (command=%q cwd=%q)", id, command, cwd)
	return s.info(), nil
}

// spawn starts the process for s and hooks up the reader goroutine, the
// silent-pty roster fallback, and the delayed initial command. Shared by
// Create and Restart.
func (m *Manager) spawn(s *Session) error {
	env := append(os.Environ(),
		"TERM=xterm-256color",
		"WTERM_API_URL="+m.opts.APIBaseURL,
		"WTERM_SESSION_ID="+s.id,
	)

	proc, err := m.opts.Start(m.opts.Shell, s.cwd, env, defaultCols, defaultRows)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.proc = proc
	s.status = StatusRunning
	s.exitCode = nil
	s.initialized = false
	s.generation++
	gen := s.generation
	command := s.command
	s.mu.Unlock()

	go m.readLoop(s, proc, gen)

	time.AfterFunc(rosterFallbackDelay, func() {
		m.markInitialized(s, gen)
	})

	if command != "" {
		time.AfterFunc(m.opts.CommandDelay, func() {
			m.writeRaw(s, command+"\r")
		})
	}
	return nil
}

// readLoop drains the pty master, feeding the scrollback buffer and the
// transport. It is the single writer of the session's buffer for its
// generation.
func (m *Manager) readLoop(s *Session, proc Process, gen int) {
	buf := make([]byte, 32*1024)
	var pending []byte // incomplete UTF-8 tail from the previous read
	for {
		n, err := proc.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			if len(pending) > 0 {
				combined := make([]byte, len(pending)+n)
				copy(combined, pending)
				copy(combined[len(pending):], buf[:n])
				chunk = combined
				pending = nil
			}
			if tail := incompleteUTF8Tail(chunk); tail > 0 {
				pending = append([]byte(nil), chunk[len(chunk)-tail:]...)
				chunk = chunk[:len(chunk)-tail]
			}
			if len(chunk) > 0 {
				m.emitOutput(s, gen, string(chunk))
			}
		}
		if err != nil {
			if len(pending) > 0 {
				m.emitOutput(s, gen, string(pending))
			}
			break
		}
	}

	code := proc.Wait()
	proc.Close()

	s.mu.Lock()
	if s.generation != gen {
		// A restart already replaced this process.
		s.mu.Unlock()
		return
	}
	s.status = StatusExited
	s.exitCode = &code
	s.proc = nil
	s.mu.Unlock()

	logger.Info("session %s exited (exit code %d)", s.id, code)
	if n := m.getNotifier(); n != nil {
		n.Exited(s.id, code)
	}
	m.notifyRoster()
}

// emitOutput appends one chunk and fans it out. The first output after a
// spawn doubles as the "pty is alive" signal that triggers a roster
// broadcast.
func (m *Manager) emitOutput(s *Session, gen int, data string) {
	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	first := !s.initialized
	s.initialized = true
	s.mu.Unlock()

	s.streamMu.Lock()
	s.buffer.Append(data)
	if n := m.getNotifier(); n != nil {
		n.Output(s.id, data)
	}
	s.streamMu.Unlock()

	if first {
		m.notifyRoster()
	}
}

func (m *Manager) markInitialized(s *Session, gen int) {
	s.mu.Lock()
	if s.generation != gen || s.initialized {
		s.mu.Unlock()
		return
	}
	s.initialized = true
	s.mu.Unlock()
	m.notifyRoster()
}

// Restart re-spawns an exited session under its same id, replaying the
// original initial command and resetting buffer and exit code. Restarting
// a running session fails.
func (m *Manager) Restart(id string) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	if s.status != StatusExited {
		s.mu.Unlock()
		return ErrSessionRunning
	}
	// Claim the respawn before dropping the lock, so a concurrent restart
	// fails here instead of spawning a second process.
	s.status = StatusRunning
	s.mu.Unlock()

	s.buffer.Reset()
	s.input.reset()
	if err := m.spawn(s); err != nil {
		s.mu.Lock()
		s.status = StatusExited
		s.mu.Unlock()
		return fmt.Errorf("restarting session %s: %w", id, err)
	}

	s.mu.Lock()
	if s.deleted {
		// Delete won the race after our spawn; reap the fresh process.
		proc := s.proc
		s.proc = nil
		s.status = StatusExited
		s.mu.Unlock()
		if proc != nil {
			proc.Kill()
			proc.Close()
		}
		return ErrSessionNotFound
	}
	s.mu.Unlock()

	logger.Info("restarted session %s", id)
	m.notifyRoster()
	return nil
}

// Delete force-kills a running session's process and removes the session
// from the registry. Returns false when the id was unknown; deleting an
// already-exited session still succeeds.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
		for i, other := range m.order {
			if other == id {
				m.order = append(m.order[:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	s.deleted = true
	proc := s.proc
	running := s.status == StatusRunning
	s.mu.Unlock()

	if running && proc != nil {
		if err := proc.Kill(); err != nil && !isBenignRace(err) {
			logger.Error("killing session %s: %v", id, err)
		}
		proc.Close()
	}

	logger.Info("deleted session %s", id)
	m.notifyRoster()
	return true
}

// Write feeds viewer keystrokes into the session. The bytes pass through
// the slash-command filter first; recognized internal commands are handled
// in-process and never reach the shell.
func (m *Manager) Write(id, data string) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	if s.currentStatus() != StatusRunning {
		return ErrSessionNotRunning
	}

	forward := s.input.process(data, func(line string) bool {
		return m.dispatchCommand(s, line)
	})
	if len(forward) == 0 {
		return nil
	}
	if !m.writeRaw(s, string(forward)) {
		return ErrSessionNotRunning
	}
	return nil
}

// writeRaw is the guarded write path. Benign teardown races are swallowed
// and only flip the session to Exited; unexpected errors are logged loudly
// but still mark the session Exited rather than leaving it ambiguous.
func (m *Manager) writeRaw(s *Session, data string) bool {
	s.mu.Lock()
	proc := s.proc
	running := s.status == StatusRunning
	s.mu.Unlock()
	if !running || proc == nil {
		return false
	}

	if _, err := proc.Write([]byte(data)); err != nil {
		if isBenignRace(err) {
			logger.Debug("pty write race on %s: %v", s.id, err)
		} else {
			logger.Error("pty write error on %s: %v", s.id, err)
		}
		s.mu.Lock()
		s.status = StatusExited
		s.mu.Unlock()
		return false
	}
	return true
}

// Resize forwards new terminal geometry; a no-op when the session is not
// running.
func (m *Manager) Resize(id string, cols, rows int) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	proc := s.proc
	running := s.status == StatusRunning
	s.mu.Unlock()
	if !running || proc == nil {
		return nil
	}

	if err := proc.Resize(uint16(cols), uint16(rows)); err != nil {
		if isBenignRace(err) {
			logger.Debug("pty resize race on %s: %v", id, err)
		} else {
			logger.Error("pty resize error on %s: %v", id, err)
		}
		s.mu.Lock()
		s.status = StatusExited
		s.mu.Unlock()
	}
	return nil
}

// BufferSnapshot returns the full current scrollback, used for replay when
// a viewer attaches.
func (m *Manager) BufferSnapshot(id string) (string, error) {
	s := m.get(id)
	if s == nil {
		return "", ErrSessionNotFound
	}
	return s.buffer.Snapshot(), nil
}

// BufferRange returns scrollback content past the given absolute position,
// plus the new cursor, enabling incremental reads without a live
// connection.
func (m *Manager) BufferRange(id string, from int64) (string, int64, error) {
	s := m.get(id)
	if s == nil {
		return "", 0, ErrSessionNotFound
	}
	content, pos := s.buffer.Range(from)
	return content, pos, nil
}

// List returns the roster in creation order.
func (m *Manager) List() []Info {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	sessions := make([]*Session, 0, len(order))
	for _, id := range order {
		sessions = append(sessions, m.sessions[id])
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.info())
	}
	return infos
}

// RunningIDs returns the ids of all running sessions, in creation order.
func (m *Manager) RunningIDs() []string {
	m.mu.RLock()
	order := append([]string(nil), m.order...)
	byID := make(map[string]*Session, len(m.sessions))
	for id, s := range m.sessions {
		byID[id] = s
	}
	m.mu.RUnlock()

	var ids []string
	for _, id := range order {
		if s := byID[id]; s != nil && s.currentStatus() == StatusRunning {
			ids = append(ids, id)
		}
	}
	return ids
}

// Attach subscribes a transport connection to a session's live output. A
// non-nil replay is invoked with the scrollback snapshot while the output
// stream is held, so every byte reaches the connection exactly once: either
// inside the replayed history or in an output frame enqueued after it.
func (m *Manager) Attach(id, connID string, replay func(history string)) error {
	s := m.get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	s.addViewer(connID)
	if replay != nil {
		s.streamMu.Lock()
		replay(s.buffer.Snapshot())
		s.streamMu.Unlock()
	}
	return nil
}

// Detach unsubscribes a connection from a session; the session itself is
// unaffected.
func (m *Manager) Detach(id, connID string) {
	if s := m.get(id); s != nil {
		s.removeViewer(connID)
	}
}

// DropViewer removes a closed connection from every session's viewer set.
func (m *Manager) DropViewer(connID string) {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	for _, s := range sessions {
		s.removeViewer(connID)
	}
}

// Shutdown force-kills every running session. Used on server exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.order = nil
	m.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		proc := s.proc
		running := s.status == StatusRunning
		s.mu.Unlock()
		if running && proc != nil {
			proc.Kill()
			proc.Close()
		}
	}
}

func (m *Manager) get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// injectOutput writes text into a session's own output stream, bypassing
// the pty. Slash-command replies use this so they render inline as if the
// shell had answered.
func (m *Manager) injectOutput(s *Session, text string) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	s.buffer.Append(text)
	if n := m.getNotifier(); n != nil {
		n.Output(s.id, text)
	}
}

func (m *Manager) notifyRoster() {
	if n := m.getNotifier(); n != nil {
		n.RosterChanged(m.List())
	}
}
