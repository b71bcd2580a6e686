package session

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// Process is the manager's view of one spawned pseudo-terminal process.
// The default implementation wraps a real pty; tests substitute pipe-backed
// fakes through Options.Start.
type Process interface {
	io.Reader
	io.Writer
	// Resize sets the terminal geometry.
	Resize(cols, rows uint16) error
	// Kill force-terminates the process.
	Kill() error
	// Wait blocks until the process exits and returns its exit code.
	Wait() int
	// Close releases the pty master.
	Close() error
}

// StartFunc spawns the process behind a new session.
type StartFunc func(command string, cwd string, env []string, cols, rows uint16) (Process, error)

// StartPTY is the production StartFunc: it runs command (a shell) under a
// real pseudo-terminal of the given size.
func StartPTY(command string, cwd string, env []string, cols, rows uint16) (Process, error) {
	cmd := exec.Command(command)
	cmd.Dir = cwd
	cmd.Env = env

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: cols, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("pty start: %w", err)
	}
	return &ptyProcess{cmd: cmd, ptmx: ptmx}, nil
}

type ptyProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

func (p *ptyProcess) Read(buf []byte) (int, error)  { return p.ptmx.Read(buf) }
func (p *ptyProcess) Write(buf []byte) (int, error) { return p.ptmx.Write(buf) }

func (p *ptyProcess) Resize(cols, rows uint16) error {
	return pty.Setsize(p.ptmx, &pty.Winsize{Cols: cols, Rows: rows})
}

func (p *ptyProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

func (p *ptyProcess) Wait() int {
	err := p.cmd.Wait()
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func (p *ptyProcess) Close() error { return p.ptmx.Close() }

// isBenignRace reports whether a write/resize error belongs to the narrow
// class of races with process teardown that must be swallowed: the pty
// master returns EIO once the child is reaped, and a concurrent delete can
// close the file under us. Anything else is a real defect and gets logged.
func isBenignRace(err error) bool {
	return errors.Is(err, syscall.EIO) ||
		errors.Is(err, syscall.EBADF) ||
		errors.Is(err, os.ErrClosed)
}

// incompleteUTF8Tail returns the number of trailing bytes that form an
// incomplete multi-byte UTF-8 sequence. Output chunks cross a JSON
// websocket frame boundary, so a split character would be mangled into
// U+FFFD by the encoder; the reader holds these bytes back until the rest
// arrives.
func incompleteUTF8Tail(data []byte) int {
	n := len(data)
	if n == 0 || data[n-1] < 0x80 {
		return 0
	}
	for i := 0; i < 4 && i < n; i++ {
		b := data[n-1-i]
		if b&0xC0 != 0x80 {
			var seqLen int
			switch {
			case b&0xE0 == 0xC0:
				seqLen = 2
			case b&0xF0 == 0xE0:
				seqLen = 3
			case b&0xF8 == 0xF0:
				seqLen = 4
			default:
				return 0
			}
			if have := i + 1; have < seqLen {
				return have
			}
			return 0
		}
	}
	return 0
}
