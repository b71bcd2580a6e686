package session

import (
	"bytes"
	"io"
	"sync"
	"time"
)

// fakeProcess stands in for a pty: output is fed through a pipe so the
// manager's read loop behaves exactly as with a real master, and input is
// recorded for assertions.
type fakeProcess struct {
	outR *io.PipeReader
	outW *io.PipeWriter

	mu       sync.Mutex
	input    bytes.Buffer
	resizes  [][2]uint16
	writeErr error
	code     int
	killed   bool

	done     chan struct{}
	exitOnce sync.Once
}

func newFakeProcess() *fakeProcess {
	r, w := io.Pipe()
	return &fakeProcess{outR: r, outW: w, done: make(chan struct{})}
}

func (p *fakeProcess) Read(buf []byte) (int, error) { return p.outR.Read(buf) }

func (p *fakeProcess) Write(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	return p.input.Write(buf)
}

func (p *fakeProcess) Resize(cols, rows uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resizes = append(p.resizes, [2]uint16{cols, rows})
	return nil
}

func (p *fakeProcess) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.exit(-1)
	return nil
}

func (p *fakeProcess) Wait() int {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code
}

func (p *fakeProcess) Close() error { return p.outR.Close() }

// emit feeds data into the session's read loop and blocks until consumed.
func (p *fakeProcess) emit(data string) {
	p.outW.Write([]byte(data))
}

// exit ends the process with the given code.
func (p *fakeProcess) exit(code int) {
	p.exitOnce.Do(func() {
		p.mu.Lock()
		p.code = code
		p.mu.Unlock()
		p.outW.Close()
		close(p.done)
	})
}

func (p *fakeProcess) inputString() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.input.String()
}

func (p *fakeProcess) wasKilled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}

// fakeStarter hands out fakeProcesses in spawn order.
type fakeStarter struct {
	mu    sync.Mutex
	procs []*fakeProcess
	envs  [][]string
}

func (f *fakeStarter) start(command, cwd string, env []string, cols, rows uint16) (Process, error) {
	p := newFakeProcess()
	f.mu.Lock()
	f.procs = append(f.procs, p)
	f.envs = append(f.envs, env)
	f.mu.Unlock()
	return p, nil
}

func (f *fakeStarter) proc(i int) *fakeProcess {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.procs[i]
}

func (f *fakeStarter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.procs)
}

// recordingNotifier captures manager events for assertions.
type recordingNotifier struct {
	mu       sync.Mutex
	rosters  [][]Info
	outputs  []string // "id:data"
	exits    map[string]int
	messages []Message
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{exits: make(map[string]int)}
}

func (n *recordingNotifier) RosterChanged(roster []Info) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rosters = append(n.rosters, roster)
}

func (n *recordingNotifier) Output(sessionID, data string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outputs = append(n.outputs, sessionID+":"+data)
}

func (n *recordingNotifier) Exited(sessionID string, exitCode int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.exits[sessionID] = exitCode
}

func (n *recordingNotifier) MessageSent(msg Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
}

func (n *recordingNotifier) outputFor(sessionID string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var sb bytes.Buffer
	prefix := sessionID + ":"
	for _, out := range n.outputs {
		if len(out) > len(prefix) && out[:len(prefix)] == prefix {
			sb.WriteString(out[len(prefix):])
		}
	}
	return sb.String()
}

func (n *recordingNotifier) exitCode(sessionID string) (int, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	code, ok := n.exits[sessionID]
	return code, ok
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
