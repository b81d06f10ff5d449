package registry

import (
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Client is one live WS connection, bound to a table and a user identity.
// Grounded on the teacher's websocket/client.go Client type.
type Client struct {
	UserID  string
	TableID string
	Conn    *websocket.Conn
	Send    chan []byte
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, tableID, userID string) *Client {
	return &Client{
		UserID:  userID,
		TableID: tableID,
		Conn:    conn,
		Send:    make(chan []byte, 32),
	}
}

// ReadPump reads inbound frames and hands each one to handle, until the
// connection errors or closes. Call detach when ReadPump returns.
func (c *Client) ReadPump(handle func(raw []byte), detach func()) {
	defer func() {
		detach()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[REGISTRY] unexpected close for user=%s table=%s: %v", c.UserID, c.TableID, err)
			}
			return
		}
		handle(message)
	}
}

// WritePump drains Send onto the connection and keeps it alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
