package web

import "github.com/codefionn/wterm/internal/session"

// Client-to-server message types
const (
	MessageTypeAttach = "attach"
	MessageTypeDetach = "detach"
	MessageTypeInput  = "input"
	MessageTypeResize = "resize"
)

// Server-to-client message types
const (
	MessageTypeSessions = "sessions"
	MessageTypeOutput   = "output"
	MessageTypeHistory  = "history"
	MessageTypeExit     = "exit"
	MessageTypeMessage  = "message"
	MessageTypeError    = "error"
)

// ClientMessage is a message received from a viewer over the websocket
type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      string `json:"data,omitempty"`
	Cols      int    `json:"cols,omitempty"`
	Rows      int    `json:"rows,omitempty"`
}

// Server-to-client frames. Each wire shape gets its own struct so the
// JSON stays exactly what viewers expect; they travel through the hub as
// pre-typed values and are marshaled in the write pump.

type sessionsFrame struct {
	Type     string         `json:"type"`
	Sessions []session.Info `json:"sessions"`
}

type outputFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

type historyFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Data      string `json:"data"`
}

type exitFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	ExitCode  int    `json:"exitCode"`
}

type messageFrame struct {
	Type    string          `json:"type"`
	Message session.Message `json:"message"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newSessionsFrame(roster []session.Info) sessionsFrame {
	if roster == nil {
		roster = []session.Info{}
	}
	return sessionsFrame{Type: MessageTypeSessions, Sessions: roster}
}

func newOutputFrame(sessionID, data string) outputFrame {
	return outputFrame{Type: MessageTypeOutput, SessionID: sessionID, Data: data}
}

func newHistoryFrame(sessionID, data string) historyFrame {
	return historyFrame{Type: MessageTypeHistory, SessionID: sessionID, Data: data}
}

func newExitFrame(sessionID string, exitCode int) exitFrame {
	return exitFrame{Type: MessageTypeExit, SessionID: sessionID, ExitCode: exitCode}
}

func newMessageFrame(msg session.Message) messageFrame {
	return messageFrame{Type: MessageTypeMessage, Message: msg}
}

func newErrorFrame(text string) errorFrame {
	return errorFrame{Type: MessageTypeError, Message: text}
}
