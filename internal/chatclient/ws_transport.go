package chatclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"questchat-ws/internal/domain"

	"github.com/gorilla/websocket"
)

// WebSocketDialer is the primary, low-latency transport.
type WebSocketDialer struct {
	HandshakeTimeout time.Duration
}

func (WebSocketDialer) Name() string { return "websocket" }

func (d WebSocketDialer) Dial(ctx context.Context, serverURL string, creds Credentials) (Conn, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"

	q := u.Query()
	q.Set("token", creds.Token)
	q.Set("user_id", creds.UserID)
	q.Set("nickname", creds.Nickname)
	q.Set("role", string(creds.Role))
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return nil, fmt.Errorf("authentication rejected by gateway: %w", err)
		}
		return nil, err
	}
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex // gorilla allows one writer at a time
}

func (c *wsConn) Send(env domain.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(env)
}

func (c *wsConn) Receive() (domain.Envelope, error) {
	var env domain.Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return domain.Envelope{}, err
	}
	return env, nil
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
