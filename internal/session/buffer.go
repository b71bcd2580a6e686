package session

import (
	"strings"
	"sync"
)

// Buffer is the scrollback window of one session: an ordered run of output
// chunks bounded by total byte length. Eviction is chunk-granular, so the
// buffer can transiently exceed the cap by up to the size of the newest
// chunk; it is a scrollback window, not an exact-size log.
//
// The buffer also tracks the absolute stream offset of its first retained
// byte, so positional reads stay meaningful after eviction.
type Buffer struct {
	mu     sync.Mutex
	chunks []string
	total  int
	base   int64 // absolute offset of chunks[0][0]
	max    int
}

// NewBuffer creates a buffer capped at max bytes.
func NewBuffer(max int) *Buffer {
	return &Buffer{max: max}
}

// Append adds one output chunk and evicts whole chunks from the front
// while the total exceeds the cap. The newest chunk is never evicted.
func (b *Buffer) Append(data string) {
	if data == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chunks = append(b.chunks, data)
	b.total += len(data)
	for b.total > b.max && len(b.chunks) > 1 {
		b.base += int64(len(b.chunks[0]))
		b.total -= len(b.chunks[0])
		b.chunks = b.chunks[1:]
	}
}

// Snapshot returns the full current contents.
func (b *Buffer) Snapshot() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.Join(b.chunks, "")
}

// Len returns the retained byte count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// End returns the absolute offset one past the newest retained byte, i.e.
// the position a follow-up Range call should resume from.
func (b *Buffer) End() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.base + int64(b.total)
}

// Range returns the contents from absolute position from onward, plus the
// new end position. Positions older than the buffer horizon are clamped to
// the horizon; positions at or past the end return "".
func (b *Buffer) Range(from int64) (string, int64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	end := b.base + int64(b.total)
	if from < b.base {
		from = b.base
	}
	if from >= end {
		return "", end
	}

	var sb strings.Builder
	offset := b.base
	for _, chunk := range b.chunks {
		next := offset + int64(len(chunk))
		if next <= from {
			offset = next
			continue
		}
		start := 0
		if from > offset {
			start = int(from - offset)
		}
		sb.WriteString(chunk[start:])
		offset = next
	}
	return sb.String(), end
}

// Reset drops all contents but keeps the absolute position monotonic.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.base += int64(b.total)
	b.chunks = nil
	b.total = 0
}
