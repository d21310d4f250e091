package server

import (
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// WebSocketClient wraps a WebSocket connection for JSON request/response
// traffic. Each text frame carries one or more newline-delimited requests.
type WebSocketClient struct {
	conn    *websocket.Conn
	pending []string   // requests left over from a batched frame
	mu      sync.Mutex // protects pending
	writeMu sync.Mutex // gorilla allows one concurrent writer
}

// NewWebSocketClient creates a new WebSocketClient from a WebSocket connection.
func NewWebSocketClient(conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{conn: conn}
}

// ReadLine returns the next request line, blocking until one arrives.
// Blank lines and binary frames are skipped.
func (c *WebSocketClient) ReadLine() (string, error) {
	for {
		if line, ok := c.popPending(); ok {
			return line, nil
		}

		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			return "", err
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var lines []string
		for _, line := range strings.Split(string(message), "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
		if len(lines) == 0 {
			continue
		}

		c.mu.Lock()
		c.pending = append(c.pending, lines[1:]...)
		c.mu.Unlock()
		return lines[0], nil
	}
}

func (c *WebSocketClient) popPending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return "", false
	}
	line := c.pending[0]
	c.pending = c.pending[1:]
	return line, true
}

// WriteJSON writes v to the WebSocket client as one text message.
func (c *WebSocketClient) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// Close closes the WebSocket connection.
func (c *WebSocketClient) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote address as a string.
func (c *WebSocketClient) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
