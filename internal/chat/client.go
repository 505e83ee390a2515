package chat

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// ConnLike is the slice of the websocket connection the core needs,
// kept narrow so tests can substitute scripted connections.
type ConnLike interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

// Client is one live transport session. ID is the server-assigned
// connection identity, stable for the connection's lifetime.
type Client struct {
	ID   string
	Conn ConnLike
	Send chan []byte
}

func NewClient(conn ConnLike, sendBuffer int) *Client {
	return &Client{
		ID:   uuid.NewString(),
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}
}

// ReadPump decodes inbound frames and funnels them into the hub's event
// stream. Unparseable frames are skipped; a read error means the
// connection is gone and triggers unregistration.
func (c *Client) ReadPump(h *Hub) {
	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			h.Unregister <- c
			return
		}
		event, err := DecodeInbound(data)
		if err != nil {
			continue
		}
		h.Inbound <- Frame{Client: c, Event: event}
	}
}

// WritePump drains the send buffer onto the connection. The hub closes
// Send on unregistration, which closes the connection in turn.
func (c *Client) WritePump() {
	for data := range c.Send {
		_ = c.Conn.WriteMessage(websocket.TextMessage, data)
	}
	_ = c.Conn.Close()
}
