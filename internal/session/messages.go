package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// SenderBrowser is the sender sentinel for messages originating from a
// viewer UI rather than a session.
const SenderBrowser = "browser"

// TargetAll is the broadcast target sentinel.
const TargetAll = "all"

// Message is one inter-session communication, kept in a capped in-memory
// ring (oldest evicted first). Not durable by design.
type Message struct {
	ID        string    `json:"id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SendResult reports a successful send. Output is only set for
// waitForResponse sends and is a best-effort capture, not a guarantee.
type SendResult struct {
	MessageID string
	Output    string
}

type messageLog struct {
	mu   sync.Mutex
	msgs []Message
	max  int
}

func newMessageLog(max int) *messageLog {
	return &messageLog{max: max}
}

func (l *messageLog) append(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
	for len(l.msgs) > l.max {
		l.msgs = l.msgs[1:]
	}
}

// list returns up to limit newest messages, optionally filtered to those
// touching sessionID (as sender, direct recipient, or via broadcast).
func (l *messageLog) list(limit int, sessionID string) []Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	filtered := l.msgs
	if sessionID != "" {
		filtered = nil
		for _, msg := range l.msgs {
			if msg.From == sessionID || msg.To == sessionID || msg.To == TargetAll {
				filtered = append(filtered, msg)
			}
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return append([]Message(nil), filtered...)
}

// Send delivers content into the target session's input stream as literal
// keystrokes, then, after a short delay, a standalone line terminator.
// The two-step send matters: several interactive line-editors treat a
// terminator arriving in the same chunk as a multi-line paste, so this
// emulates a human pasting text and pressing Enter.
//
// For to == TargetAll every running session except the sender receives the
// same two-step send. With waitForResponse the target's buffer growth
// after a settle period is captured and cleaned; the capture is inherently
// approximate because no request/response framing exists at the shell
// level.
func (m *Manager) Send(ctx context.Context, from, to, content string, waitForResponse bool) (SendResult, error) {
	var target *Session
	if to != TargetAll {
		target = m.get(to)
		if target == nil {
			return SendResult{}, &TargetUnavailableError{
				Target:    to,
				Reason:    ErrSessionNotFound,
				Available: m.RunningIDs(),
			}
		}
		if target.currentStatus() != StatusRunning {
			return SendResult{}, &TargetUnavailableError{
				Target:    to,
				Reason:    ErrSessionNotRunning,
				Available: m.RunningIDs(),
			}
		}
	}

	msg := Message{
		ID:        newMessageID(),
		From:      from,
		To:        to,
		Content:   content,
		Timestamp: time.Now(),
	}
	m.history.append(msg)
	if n := m.getNotifier(); n != nil {
		n.MessageSent(msg)
	}

	result := SendResult{MessageID: msg.ID}

	if to == TargetAll {
		m.mu.RLock()
		order := append([]string(nil), m.order...)
		m.mu.RUnlock()
		for _, id := range order {
			s := m.get(id)
			if s == nil || s.id == from || s.currentStatus() != StatusRunning {
				continue
			}
			if err := m.typeMessage(ctx, s, content); err != nil {
				return result, err
			}
		}
		return result, nil
	}

	var mark int64
	if waitForResponse {
		mark = target.buffer.End()
	}

	if err := m.typeMessage(ctx, target, content); err != nil {
		return result, err
	}

	if waitForResponse {
		if err := sleepCtx(ctx, m.opts.ResponseSettle); err != nil {
			return result, err
		}
		raw, _ := target.buffer.Range(mark)
		result.Output = CleanResponse(raw, content)
	}

	return result, nil
}

// typeMessage performs the two-step keystroke delivery into one session.
func (m *Manager) typeMessage(ctx context.Context, s *Session, content string) error {
	m.writeRaw(s, content)
	if err := sleepCtx(ctx, m.opts.EnterDelay); err != nil {
		return err
	}
	m.writeRaw(s, "\r")
	return nil
}

// History returns up to limit newest messages, optionally filtered by
// session id.
func (m *Manager) History(limit int, sessionID string) []Message {
	return m.history.list(limit, sessionID)
}

func newMessageID() string {
	suffix := make([]byte, 4)
	rand.Read(suffix)
	return fmt.Sprintf("msg-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(suffix))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
