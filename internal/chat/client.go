package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum message size allowed from peer.

	sendBufSize = 256
)

// Client is the middleman between one websocket connection and the hub.
// Each open channel gets its own Client, its own connection id, and its own
// read/write pump goroutines.
type Client struct {
	ID       string
	UserID   string
	OpenedAt time.Time

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	router *Router

	// onClose runs exactly once when the read pump exits, before the hub
	// unregisters the client. It carries the presence deregistration.
	onClose func()
}

// enqueue hands a marshaled event to the write pump without blocking. A
// client that cannot keep up loses events rather than stalling the emitter.
func (c *Client) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	default:
		log.Printf("client %s: send buffer full, dropping event", c.ID)
	}
}

// readPump pumps inbound events from the websocket into the router. It owns
// teardown: when it returns, the connection is deregistered from presence
// and removed from the hub, unconditionally.
func (c *Client) readPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose()
		}
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("client %s read error: %v", c.ID, err)
			}
			break
		}
		if err := c.router.Dispatch(context.Background(), message); err != nil {
			if errors.Is(err, errNotAuthenticated) {
				log.Printf("client %s: event before authentication, closing", c.ID)
				break
			}
			log.Printf("client %s dispatch error: %v", c.ID, err)
		}
	}
}

// writePump pumps events from the hub to the websocket connection and keeps
// the connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain queued events into the same write to cut syscalls.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
