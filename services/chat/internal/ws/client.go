package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 8 * 1024
)

// Client is one websocket connection registered in the hub.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	userID    string
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(h *Hub, userID string, conn *websocket.Conn) *Client {
	return &Client{
		conn:   conn,
		hub:    h,
		userID: userID,
		send:   make(chan []byte, 256),
		done:   make(chan struct{}),
	}
}

// readPump discards inbound frames; sending goes through the HTTP API. Its
// job is to notice closed connections and keep the pong deadline fresh.
func (c *Client) readPump() {
	defer c.Close()
	c.conn.SetReadLimit(readLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

// Close unregisters the client and tears the connection down exactly once.
// The send channel is never closed: the hub may still hold a reference and
// race a delivery against teardown, so shutdown is signalled through done
// instead and the buffer is left for the GC.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.unregister(c.userID, c)
		close(c.done)
		_ = c.conn.Close()
	})
}
