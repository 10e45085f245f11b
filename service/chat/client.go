package chat

import (
	"sync"
	"time"

	"Chatty/logger"

	"github.com/gorilla/websocket"
)

// Client represents one live session of a user on this gateway.
// A single user may have multiple tabs/devices, each with its own Client.
type Client struct {
	ConnID      string          // unique within the local gateway
	UserID      string          // fixed for the connection's lifetime
	WS          *websocket.Conn // nil in tests
	Send        chan []byte     // outbound queue, drained by one writer goroutine
	ConnectedAt time.Time

	mu    sync.RWMutex
	focus string // peer currently viewed by this session, "" = none

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID, userID string, ws *websocket.Conn, sendQueueSize int) *Client {
	return &Client{
		ConnID:      connID,
		UserID:      userID,
		WS:          ws,
		Send:        make(chan []byte, sendQueueSize),
		ConnectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// Focus returns the session's current conversation focus.
func (c *Client) Focus() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.focus
}

// SetFocus records the peer this session is viewing ("" clears it).
func (c *Client) SetFocus(peer string) {
	c.mu.Lock()
	c.focus = peer
	c.mu.Unlock()
}

// Enqueue hands a payload to the writer without blocking. A full queue
// means a slow client; the copy is dropped, the durable store covers it.
func (c *Client) Enqueue(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	default:
		logger.Warnf("[client] send queue full, drop frame user=%s conn=%s", c.UserID, c.ConnID)
		return false
	}
}

// Close releases the session. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.WS != nil {
			_ = c.WS.Close()
		}
	})
}

const (
	writeWait = 5 * time.Second
	pingEvery = 25 * time.Second
	pongWait  = 75 * time.Second
)

// WritePump is the single writer for the connection: drains Send and keeps
// the websocket alive with pings. Exits when Close is called or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Infof("[client] write err user=%s conn=%s err=%v", c.UserID, c.ConnID, err)
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
