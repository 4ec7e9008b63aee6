package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
)

// Client talks to a running daemon over its socket. Calls are serialized.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

// Dial connects to the daemon socket.
func Dial(ctx context.Context, socketPath string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", socketPath, err)
	}
	return &Client{conn: conn, reader: bufio.NewReader(conn)}, nil
}

// line is either a Response or a PushMessage.
type line struct {
	Response
	Type string `json:"type"`
}

// Call sends cmd and waits for its response, skipping any pushes that
// arrive first. A response with Success false is returned as an error.
func (c *Client) Call(cmd CommandType, data any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req, err := NewRequest(cmd, data)
	if err != nil {
		return nil, err
	}
	payload, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	if _, err := c.conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	for {
		l, err := c.read()
		if err != nil {
			return nil, err
		}
		if l.Type != "" {
			continue
		}
		if !l.Success {
			return nil, fmt.Errorf("%s: %s", cmd, l.Error)
		}
		return l.Data, nil
	}
}

// NextPush blocks until the server pushes a message. Only meaningful after
// subscribing with CmdSubscribeFrames.
func (c *Client) NextPush() (*PushMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		l, err := c.read()
		if err != nil {
			return nil, err
		}
		if l.Type != "" {
			return &PushMessage{Type: l.Type, Data: l.Data}, nil
		}
	}
}

func (c *Client) read() (*line, error) {
	raw, err := c.reader.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("failed to read from daemon: %w", err)
	}
	var l line
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	return &l, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
