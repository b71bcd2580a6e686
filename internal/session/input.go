package session

import (
	"strings"
	"sync"
)

const (
	asciiBackspace = '\b'
	asciiDelete    = 0x7f
	asciiKillLine  = 0x15 // Ctrl-U
)

// inputFilter mirrors the line the user is typing into a session so that
// lines beginning with '/' can be recognized as internal commands once a
// terminator arrives. It is a small accumulator state machine: accumulate,
// classify on terminator, dispatch or forward, reset.
type inputFilter struct {
	mu   sync.Mutex
	line []rune
}

// process runs data through the accumulator and returns the bytes that
// should actually reach the pty. Recognized commands (handle returns true)
// are replaced by a kill-line byte so the shell discards the text it has
// already echoed instead of executing it.
func (f *inputFilter) process(data string, handle func(line string) bool) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []byte
	for _, r := range data {
		switch {
		case r == '\r' || r == '\n':
			line := strings.TrimSpace(string(f.line))
			f.line = f.line[:0]
			if strings.HasPrefix(line, "/") && handle(line) {
				out = append(out, asciiKillLine)
				continue
			}
			out = append(out, byte(r))

		case r == asciiBackspace || r == asciiDelete:
			if len(f.line) > 0 {
				f.line = f.line[:len(f.line)-1]
			}
			out = append(out, byte(r))

		case r == asciiKillLine:
			f.line = f.line[:0]
			out = append(out, byte(r))

		default:
			f.line = append(f.line, r)
			out = append(out, []byte(string(r))...)
		}
	}
	return out
}

func (f *inputFilter) reset() {
	f.mu.Lock()
	f.line = f.line[:0]
	f.mu.Unlock()
}
