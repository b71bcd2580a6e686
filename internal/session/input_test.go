package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInputFilterForwardsPlainInput(t *testing.T) {
	var f inputFilter
	out := f.process("ls -la\r", func(string) bool { return false })
	assert.Equal(t, "ls -la\r", string(out))
}

func TestInputFilterInterceptsRecognizedCommand(t *testing.T) {
	var f inputFilter
	var seen []string
	handle := func(line string) bool {
		seen = append(seen, line)
		return true
	}

	out := f.process("/list\r", handle)
	assert.Equal(t, []string{"/list"}, seen)
	// The typed characters still reach the pty (the shell echoed them),
	// but the terminator is swapped for a kill-line so nothing executes.
	assert.Equal(t, "/list"+string(rune(asciiKillLine)), string(out))
}

func TestInputFilterForwardsUnrecognizedSlashLine(t *testing.T) {
	var f inputFilter
	out := f.process("/usr/bin/env\r", func(string) bool { return false })
	assert.Equal(t, "/usr/bin/env\r", string(out))
}

func TestInputFilterBackspaceEditsAccumulator(t *testing.T) {
	var f inputFilter
	var seen []string
	handle := func(line string) bool {
		seen = append(seen, line)
		return true
	}

	// "/lisx" then backspace then "t" should classify as "/list".
	f.process("/lisx", handle)
	f.process("\x7f", handle)
	out := f.process("t\r", handle)

	assert.Equal(t, []string{"/list"}, seen)
	assert.Equal(t, "t"+string(rune(asciiKillLine)), string(out))
}

func TestInputFilterKillLineClearsAccumulator(t *testing.T) {
	var f inputFilter
	called := false
	handle := func(string) bool {
		called = true
		return true
	}

	f.process("/list", handle)
	f.process("\x15", handle)
	out := f.process("echo hi\r", handle)

	assert.False(t, called, "cleared line must not classify as a command")
	assert.Equal(t, "echo hi\r", string(out))
}

func TestInputFilterSplitAcrossWrites(t *testing.T) {
	var f inputFilter
	var seen []string
	handle := func(line string) bool {
		seen = append(seen, line)
		return true
	}

	f.process("/se", handle)
	f.process("nd session-2 hi", handle)
	f.process("\r", handle)

	assert.Equal(t, []string{"/send session-2 hi"}, seen)
}
