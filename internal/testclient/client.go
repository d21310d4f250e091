package testclient

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/questengine/internal/server"
)

// DefaultTimeout bounds how long Send waits for a response
const DefaultTimeout = 3 * time.Second

// Message is any message the server sends: a response or a push
type Message struct {
	Type     string            `json:"type"`
	ID       string            `json:"id,omitempty"`
	Op       string            `json:"op,omitempty"`
	OK       bool              `json:"ok"`
	Error    *server.ErrorBody `json:"error,omitempty"`
	Data     json.RawMessage   `json:"data,omitempty"`
	Message  string            `json:"message,omitempty"`
	Severity string            `json:"severity,omitempty"`
	Level    int               `json:"level,omitempty"`
}

// Decode unmarshals the message's data payload into v
func (m Message) Decode(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s response has no data", m.Op)
	}
	return json.Unmarshal(m.Data, v)
}

// TestClient represents a test client connection to the quest server
type TestClient struct {
	Name    string
	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	messages []Message               // pushed notifications, oldest first
	pending  map[string]chan Message // request ID -> waiting Send
	nextID   atomic.Uint64
	greeting chan Message
	done     chan struct{}
	once     sync.Once
}

// NewTestClient opens a session for player name on the server at address
// (host:port) and waits for the session greeting.
func NewTestClient(name string, address string) (*TestClient, error) {
	u := url.URL{
		Scheme:   "ws",
		Host:     address,
		Path:     "/ws",
		RawQuery: url.Values{"player": []string{name}}.Encode(),
	}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	client := &TestClient{
		Name:     name,
		conn:     conn,
		messages: make([]Message, 0),
		pending:  make(map[string]chan Message),
		greeting: make(chan Message, 1),
		done:     make(chan struct{}),
	}

	// Start reading messages in background
	go client.readMessages()

	select {
	case msg := <-client.greeting:
		if !msg.OK {
			client.Close()
			return nil, fmt.Errorf("session refused: %s", ErrorText(msg))
		}
	case <-time.After(DefaultTimeout):
		client.Close()
		return nil, fmt.Errorf("no session greeting within %s", DefaultTimeout)
	}

	return client, nil
}

// readMessages continuously reads messages from the server
func (c *TestClient) readMessages() {
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.Close()
			return
		}

		if msg.Type != server.TypeResponse {
			c.mu.Lock()
			c.messages = append(c.messages, msg)
			c.mu.Unlock()
			continue
		}

		if msg.Op == server.OpSession {
			select {
			case c.greeting <- msg:
			default:
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.ID]
		delete(c.pending, msg.ID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

// Send issues req and waits for its response
func (c *TestClient) Send(req server.Request) (Message, error) {
	req.ID = strconv.FormatUint(c.nextID.Add(1), 10)
	ch := make(chan Message, 1)

	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return Message{}, fmt.Errorf("failed to send %s: %w", req.Op, err)
	}

	select {
	case msg := <-ch:
		return msg, nil
	case <-c.done:
		return Message{}, fmt.Errorf("connection closed waiting for %s", req.Op)
	case <-time.After(DefaultTimeout):
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return Message{}, fmt.Errorf("timed out waiting for %s", req.Op)
	}
}

// SendRaw writes a line without waiting for anything
func (c *TestClient) SendRaw(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

// GetMessages returns all pushed messages received so far
func (c *TestClient) GetMessages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Return a copy
	result := make([]Message, len(c.messages))
	copy(result, c.messages)
	return result
}

// ClearMessages clears the message buffer
func (c *TestClient) ClearMessages() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = make([]Message, 0)
}

// WaitForMessage waits for a pushed message whose text contains the specified text (with timeout)
func (c *TestClient) WaitForMessage(text string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if c.HasMessage(text) {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}

	return false
}

// HasMessage checks if any pushed message contains the specified text
func (c *TestClient) HasMessage(text string) bool {
	for _, msg := range c.GetMessages() {
		if strings.Contains(msg.Message, text) {
			return true
		}
	}
	return false
}

// PrintMessages prints all pushed messages (for debugging)
func (c *TestClient) PrintMessages() {
	messages := c.GetMessages()
	fmt.Printf("\n=== Messages for %s ===\n", c.Name)
	for i, msg := range messages {
		fmt.Printf("[%d] %s %s: %s\n", i, msg.Type, msg.Severity, msg.Message)
	}
	fmt.Println("======================")
}

// Close closes the client connection
func (c *TestClient) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// ErrorText describes a failed response
func ErrorText(msg Message) string {
	if msg.Error == nil {
		return "unknown error"
	}
	return fmt.Sprintf("%s: %s", msg.Error.Code, msg.Error.Message)
}
