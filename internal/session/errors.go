package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotRunning is returned when input or a message targets an
	// exited session.
	ErrSessionNotRunning = errors.New("session is not running")
	// ErrSessionRunning is returned when restart is requested for a
	// session that has not exited.
	ErrSessionRunning = errors.New("session is still running")
)

// TargetUnavailableError reports a messaging send whose target session is
// unknown or no longer running. Available lists the ids that are currently
// valid targets so the caller can recover.
type TargetUnavailableError struct {
	Target    string
	Reason    error
	Available []string
}

func (e *TargetUnavailableError) Error() string {
	if errors.Is(e.Reason, ErrSessionNotFound) {
		return fmt.Sprintf("session '%s' not found (available: %s)", e.Target, strings.Join(e.Available, ", "))
	}
	return fmt.Sprintf("session '%s' has exited (available: %s)", e.Target, strings.Join(e.Available, ", "))
}

func (e *TargetUnavailableError) Unwrap() error { return e.Reason }
