package web

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/codefionn/wterm/internal/logger"
	"github.com/codefionn/wterm/internal/session"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 65536
)

// Client represents one viewer's WebSocket connection
type Client struct {
	ID      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan any
	manager *session.Manager
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, manager *session.Manager) *Client {
	id, _ := generateClientID()

	return &Client{
		ID:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan any, 256),
		manager: manager,
	}
}

// ReadPump pumps messages from the WebSocket connection into the session
// manager
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.manager.DropViewer(c.ID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("WebSocket read error: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logger.Error("Failed to unmarshal message: %v", err)
			c.sendFrame(newErrorFrame("invalid message"))
			continue
		}

		c.handleMessage(&msg)
	}
}

// WritePump pumps frames from the hub to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(frame)
			if err != nil {
				logger.Error("Failed to marshal frame: %v", err)
				continue
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Error("Failed to write frame: %v", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage handles one incoming viewer message
func (c *Client) handleMessage(msg *ClientMessage) {
	switch msg.Type {
	case MessageTypeAttach:
		// The replay callback runs while the manager holds the session's
		// output stream, so the scrollback lands on this connection exactly
		// once, before any output frame appended after the snapshot.
		err := c.manager.Attach(msg.SessionID, c.ID, func(history string) {
			c.sendFrame(newHistoryFrame(msg.SessionID, history))
		})
		if err != nil {
			c.sendFrame(newErrorFrame(fmt.Sprintf("session %s not found", msg.SessionID)))
		}

	case MessageTypeDetach:
		c.manager.Detach(msg.SessionID, c.ID)

	case MessageTypeInput:
		if err := c.manager.Write(msg.SessionID, msg.Data); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				c.sendFrame(newErrorFrame(fmt.Sprintf("session %s not found", msg.SessionID)))
			} else {
				logger.Debug("Input to %s dropped: %v", msg.SessionID, err)
			}
		}

	case MessageTypeResize:
		if msg.Cols <= 0 || msg.Rows <= 0 {
			c.sendFrame(newErrorFrame("invalid terminal size"))
			return
		}
		if err := c.manager.Resize(msg.SessionID, msg.Cols, msg.Rows); err != nil {
			logger.Debug("Resize of %s failed: %v", msg.SessionID, err)
		}

	default:
		logger.Warn("Unknown message type: %s", msg.Type)
		c.sendFrame(newErrorFrame(fmt.Sprintf("unknown message type: %s", msg.Type)))
	}
}

// sendFrame queues a frame to this client only
func (c *Client) sendFrame(frame any) {
	select {
	case c.send <- frame:
	default:
		logger.Warn("Client send channel full, dropping frame")
	}
}

// generateClientID generates a random client ID
func generateClientID() (string, error) {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
