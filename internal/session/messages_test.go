package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversTwoStepKeystrokes(t *testing.T) {
	m, starter, _ := newTestManager(t)

	info, err := m.Create("", "")
	require.NoError(t, err)

	result, err := m.Send(context.Background(), SenderBrowser, info.ID, "echo hi", false)
	require.NoError(t, err)
	assert.NotEmpty(t, result.MessageID)
	assert.Empty(t, result.Output)

	// Payload first, then the terminator on its own after the enter delay.
	assert.Equal(t, "echo hi\r", starter.proc(0).inputString())
}

func TestSendToUnknownTargetListsAvailable(t *testing.T) {
	m, _, _ := newTestManager(t)

	running, err := m.Create("", "")
	require.NoError(t, err)

	_, err = m.Send(context.Background(), SenderBrowser, "session-99", "hi", false)
	var unavailable *TargetUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, []string{running.ID}, unavailable.Available)
	assert.Contains(t, unavailable.Error(), "session-99")
	assert.Contains(t, unavailable.Error(), running.ID)
}

func TestSendToExitedTarget(t *testing.T) {
	m, starter, _ := newTestManager(t)

	target, err := m.Create("", "")
	require.NoError(t, err)
	other, err := m.Create("", "")
	require.NoError(t, err)

	starter.proc(0).exit(0)
	require.True(t, waitFor(func() bool {
		return m.List()[0].Status == StatusExited
	}))

	_, err = m.Send(context.Background(), SenderBrowser, target.ID, "hi", false)
	var unavailable *TargetUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.ErrorIs(t, err, ErrSessionNotRunning)
	assert.Equal(t, []string{other.ID}, unavailable.Available)
}

func TestBroadcastSkipsSenderAndExited(t *testing.T) {
	m, starter, _ := newTestManager(t)

	sender, err := m.Create("", "")
	require.NoError(t, err)
	_, err = m.Create("", "")
	require.NoError(t, err)
	_, err = m.Create("", "")
	require.NoError(t, err)

	starter.proc(2).exit(0)
	require.True(t, waitFor(func() bool {
		return m.List()[2].Status == StatusExited
	}))

	_, err = m.Send(context.Background(), sender.ID, TargetAll, "ping", false)
	require.NoError(t, err)

	assert.Empty(t, starter.proc(0).inputString(), "sender must not receive its own broadcast")
	assert.Equal(t, "ping\r", starter.proc(1).inputString())
	assert.Empty(t, starter.proc(2).inputString(), "exited sessions are skipped")
}

func TestBroadcastWithNoTargetsSucceeds(t *testing.T) {
	m, _, _ := newTestManager(t)

	sender, err := m.Create("", "")
	require.NoError(t, err)

	result, err := m.Send(context.Background(), sender.ID, TargetAll, "anyone?", false)
	require.NoError(t, err)
	assert.NotEmpty(t, result.MessageID)
}

func TestSendWaitForResponseCapturesNewOutput(t *testing.T) {
	m, starter, _ := newTestManager(t)

	info, err := m.Create("", "")
	require.NoError(t, err)

	// Pre-existing scrollback must not leak into the capture.
	starter.proc(0).emit("old noise\r\n")
	require.True(t, waitFor(func() bool {
		buf, _ := m.BufferSnapshot(info.ID)
		return buf != ""
	}))

	go func() {
		proc := starter.proc(0)
		waitFor(func() bool { return proc.inputString() == "whoami\r" })
		proc.emit("whoami\r\nroot\r\n$ ")
	}()

	result, err := m.Send(context.Background(), SenderBrowser, info.ID, "whoami", true)
	require.NoError(t, err)
	assert.Equal(t, "root", result.Output)
}

func TestSendWaitForResponseCanceled(t *testing.T) {
	m, _, _ := newTestManager(t)

	info, err := m.Create("", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.Send(ctx, SenderBrowser, info.ID, "hi", true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMessageHistoryRecordedAndNotified(t *testing.T) {
	m, _, notifier := newTestManager(t)

	a, err := m.Create("", "")
	require.NoError(t, err)
	b, err := m.Create("", "")
	require.NoError(t, err)

	_, err = m.Send(context.Background(), a.ID, b.ID, "one", false)
	require.NoError(t, err)
	_, err = m.Send(context.Background(), b.ID, a.ID, "two", false)
	require.NoError(t, err)
	_, err = m.Send(context.Background(), a.ID, TargetAll, "three", false)
	require.NoError(t, err)

	msgs := m.History(0, "")
	require.Len(t, msgs, 3)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, a.ID, msgs[0].From)
	assert.Equal(t, b.ID, msgs[0].To)
	assert.NotEmpty(t, msgs[0].ID)

	// Failed sends never enter the history.
	_, err = m.Send(context.Background(), a.ID, "session-99", "nope", false)
	require.Error(t, err)
	assert.Len(t, m.History(0, ""), 3)

	// Broadcasts count for every session's filtered view.
	forB := m.History(0, b.ID)
	require.Len(t, forB, 3)

	notifier.mu.Lock()
	notified := len(notifier.messages)
	notifier.mu.Unlock()
	assert.Equal(t, 3, notified)
}

func TestMessageHistoryLimit(t *testing.T) {
	m, _, _ := newTestManager(t)

	a, err := m.Create("", "")
	require.NoError(t, err)
	b, err := m.Create("", "")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := m.Send(context.Background(), a.ID, b.ID, "msg", false)
		require.NoError(t, err)
	}

	assert.Len(t, m.History(2, ""), 2)
	assert.Len(t, m.History(0, ""), 5)
}

func TestSlashSendRoutesBetweenSessions(t *testing.T) {
	m, starter, _ := newTestManager(t)

	a, err := m.Create("", "")
	require.NoError(t, err)
	b, err := m.Create("", "")
	require.NoError(t, err)

	require.NoError(t, m.Write(a.ID, "/send "+b.ID+" hello there\r"))

	require.True(t, waitFor(func() bool {
		return starter.proc(1).inputString() == "hello there\r"
	}))

	buf, _ := m.BufferSnapshot(a.ID)
	assert.Contains(t, buf, "✓ message sent to "+b.ID)
}

func TestSlashSendToUnknownTargetReportsAvailable(t *testing.T) {
	m, _, _ := newTestManager(t)

	a, err := m.Create("", "")
	require.NoError(t, err)

	require.NoError(t, m.Write(a.ID, "/send session-99 hi\r"))

	buf, _ := m.BufferSnapshot(a.ID)
	assert.Contains(t, buf, "✗")
	assert.Contains(t, buf, "available sessions: "+a.ID)
}
