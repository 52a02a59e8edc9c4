package natsclient

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
)

// Client wraps a NATS connection for event publishing.
type Client struct {
	conn *nats.Conn
}

// Connect dials the NATS server. Returns an error when the server is
// unreachable; callers may choose to run without a publisher.
func Connect(url, name string) (*Client, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Publish sends data on the given subject. Honors context cancellation only
// insofar as the underlying buffered publish allows.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.conn.Publish(subject, data)
}

// Close drains and closes the connection.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Drain()
}
