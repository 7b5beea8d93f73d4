package ws

import (
	"github.com/google/uuid"

	"github.com/wjz20050714-stack/JIFEN/internal/model"
)

// Buffer size for outgoing messages
const sendBufferSize = 256

// Client is the hub's side of one websocket connection
type Client struct {
	id   model.ConnID
	send chan []byte
}

// NewClient creates a client with a fresh connection id
func NewClient() *Client {
	return &Client{
		id:   model.ConnID(uuid.NewString()),
		send: make(chan []byte, sendBufferSize),
	}
}

// ID returns the connection id
func (c *Client) ID() model.ConnID {
	return c.id
}
