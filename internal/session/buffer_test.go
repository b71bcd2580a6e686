package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferEvictsWholeChunks(t *testing.T) {
	b := NewBuffer(10)
	b.Append("abcde")
	b.Append("fghij")
	b.Append("k")

	// 11 bytes exceeds the cap, so the oldest chunk goes as a unit.
	assert.Equal(t, "fghijk", b.Snapshot())
	assert.Equal(t, 6, b.Len())
}

func TestBufferNeverEvictsNewestChunk(t *testing.T) {
	b := NewBuffer(10)
	b.Append("aaaa")
	b.Append("this chunk alone is larger than the cap")

	// The oversized chunk survives; the buffer transiently exceeds the cap.
	assert.Equal(t, "this chunk alone is larger than the cap", b.Snapshot())
}

func TestBufferRange(t *testing.T) {
	b := NewBuffer(100)
	b.Append("hello ")
	b.Append("world")

	content, pos := b.Range(0)
	assert.Equal(t, "hello world", content)
	assert.Equal(t, int64(11), pos)

	content, pos = b.Range(6)
	assert.Equal(t, "world", content)
	assert.Equal(t, int64(11), pos)

	content, pos = b.Range(11)
	assert.Equal(t, "", content)
	assert.Equal(t, int64(11), pos)
}

func TestBufferRangeClampsToHorizon(t *testing.T) {
	b := NewBuffer(10)
	b.Append("abcde")
	b.Append("fghij")
	b.Append("k") // evicts "abcde", horizon now at offset 5

	content, pos := b.Range(0)
	assert.Equal(t, "fghijk", content)
	assert.Equal(t, int64(11), pos)

	content, _ = b.Range(7)
	assert.Equal(t, "hijk", content)
}

func TestBufferRangePastEnd(t *testing.T) {
	b := NewBuffer(100)
	b.Append("abc")

	content, pos := b.Range(50)
	assert.Equal(t, "", content)
	assert.Equal(t, int64(3), pos)
}

func TestBufferResetKeepsPositionMonotonic(t *testing.T) {
	b := NewBuffer(100)
	b.Append("abcdef")
	end := b.End()

	b.Reset()
	assert.Equal(t, "", b.Snapshot())
	assert.Equal(t, end, b.End(), "reset must not rewind the stream position")

	b.Append("xyz")
	content, pos := b.Range(end)
	assert.Equal(t, "xyz", content)
	assert.Equal(t, end+3, pos)
}

func TestIncompleteUTF8Tail(t *testing.T) {
	assert.Equal(t, 0, incompleteUTF8Tail([]byte("ascii")))
	assert.Equal(t, 0, incompleteUTF8Tail([]byte("héllo")))

	euro := []byte("\xe2\x82\xac") // €
	assert.Equal(t, 0, incompleteUTF8Tail(euro))
	assert.Equal(t, 2, incompleteUTF8Tail(euro[:2]))
	assert.Equal(t, 1, incompleteUTF8Tail(euro[:1]))

	emoji := []byte("\xf0\x9f\x98\x80") // 😀
	assert.Equal(t, 3, incompleteUTF8Tail(emoji[:3]))
}
