package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"questchat-ws/internal/domain"
)

// Credentials carries the handshake identity a transport presents to the
// gateway when dialing.
type Credentials struct {
	Token    string
	UserID   string
	Nickname string
	Role     domain.Role
}

// Conn is one established transport session. Send must be safe for
// concurrent use; Receive blocks until an envelope arrives or the session is
// closed.
type Conn interface {
	Send(env domain.Envelope) error
	Receive() (domain.Envelope, error)
	Close() error
}

// Dialer establishes a Conn over one concrete transport. The client walks
// its dialer list in order on every connection attempt, so the low-latency
// transport goes first and the fallback last.
type Dialer interface {
	Name() string
	Dial(ctx context.Context, serverURL string, creds Credentials) (Conn, error)
}

var errConnClosed = errors.New("transport connection closed")

// awaitConnected reads the gateway's handshake reply: a connected envelope
// carrying the connection id, or an error envelope explaining the rejection.
func awaitConnected(conn Conn, timeout time.Duration) (string, error) {
	type result struct {
		env domain.Envelope
		err error
	}
	ch := make(chan result, 1)
	go func() {
		env, err := conn.Receive()
		ch <- result{env, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return "", r.err
		}
		switch r.env.Type {
		case domain.EventConnected:
			var p domain.ConnectedPayload
			if err := json.Unmarshal(r.env.Data, &p); err != nil {
				return "", fmt.Errorf("malformed connected payload: %w", err)
			}
			return p.ConnectionID, nil
		case domain.EventError:
			var p domain.ErrorPayload
			_ = json.Unmarshal(r.env.Data, &p)
			if p.Message == "" {
				p.Message = "connection rejected"
			}
			return "", errors.New(p.Message)
		default:
			return "", fmt.Errorf("unexpected handshake event %q", r.env.Type)
		}
	case <-timer.C:
		return "", errors.New("handshake timed out")
	}
}
