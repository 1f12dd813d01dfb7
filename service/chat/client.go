package chat

import (
	"sync"
	"time"

	"PRelay/logger"

	"github.com/gorilla/websocket"
)

// Client is one live transport connection. A single writer goroutine
// consumes Send; everything else talks to the connection through Deliver.
type Client struct {
	ConnID string
	// UserID is bound at registration and published through the registry
	// mutex; the write pump never touches it.
	UserID string
	WS     *websocket.Conn
	Send   chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(connID string, ws *websocket.Conn, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = 256
	}
	return &Client{
		ConnID: connID,
		WS:     ws,
		Send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
	}
}

// Deliver queues a payload without blocking. Returns false when the client
// is closed or its queue is full; a slow consumer drops frames rather than
// stalling the gateway.
func (c *Client) Deliver(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- payload:
		return true
	default:
		return false
	}
}

// Close makes the client stop accepting deliveries and signals the write
// pump to send a close frame and tear the transport down. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) Done() <-chan struct{} { return c.done }

type pumpConfig struct {
	pingInterval time.Duration
	writeWait    time.Duration
}

// writePump is the single writer for the connection: queued payloads,
// keepalive pings, and the final close frame.
func (c *Client) writePump(cfg pumpConfig) {
	ticker := time.NewTicker(cfg.pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.WS.Close(); err != nil {
			logger.Debugf("[ws] close conn=%s err=%v", c.ConnID, err)
		}
	}()

	for {
		select {
		case payload := <-c.Send:
			_ = c.WS.SetWriteDeadline(time.Now().Add(cfg.writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Debugf("[ws] write err conn=%s err=%v", c.ConnID, err)
				return
			}
		case <-ticker.C:
			_ = c.WS.SetWriteDeadline(time.Now().Add(cfg.writeWait))
			if err := c.WS.WriteControl(websocket.PingMessage, nil, time.Now().Add(cfg.writeWait)); err != nil {
				logger.Debugf("[ws] ping err conn=%s err=%v", c.ConnID, err)
				return
			}
		case <-c.done:
			_ = c.WS.SetWriteDeadline(time.Now().Add(cfg.writeWait))
			_ = c.WS.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
