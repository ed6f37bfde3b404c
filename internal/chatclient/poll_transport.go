package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"questchat-ws/internal/domain"
)

// PollingDialer is the fallback transport: a long-poll session against the
// gateway's REST surface. Higher latency than the websocket transport but it
// survives proxies that strip upgrades.
type PollingDialer struct {
	Client *http.Client
}

func (PollingDialer) Name() string { return "polling" }

func (d PollingDialer) Dial(ctx context.Context, serverURL string, creds Credentials) (Conn, error) {
	httpClient := d.Client
	if httpClient == nil {
		// Long polls are held open server-side for up to 25s.
		httpClient = &http.Client{Timeout: 40 * time.Second}
	}

	base := strings.TrimRight(serverURL, "/")
	body, err := json.Marshal(map[string]string{
		"token":    creds.Token,
		"user_id":  creds.UserID,
		"nickname": creds.Nickname,
		"role":     string(creds.Role),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/poll", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		var p domain.ErrorPayload
		if json.Unmarshal(raw, &p) == nil && p.Message != "" {
			return nil, fmt.Errorf("polling session rejected: %s", p.Message)
		}
		return nil, fmt.Errorf("polling session rejected: status %d", resp.StatusCode)
	}

	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.SessionID == "" {
		return nil, fmt.Errorf("malformed polling session response")
	}

	conn := &pollConn{
		base:    base,
		session: created.SessionID,
		client:  httpClient,
		events:  make(chan domain.Envelope, 64),
		closed:  make(chan struct{}),
	}
	go conn.fetchLoop()
	return conn, nil
}

type pollConn struct {
	base    string
	session string
	client  *http.Client

	events    chan domain.Envelope
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	readErr error
}

// fetchLoop long-polls the event endpoint and fans envelopes into the
// receive channel until the session dies. The request context is cancelled
// when the session closes so Close never waits out an in-flight poll.
func (c *pollConn) fetchLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.closed
		cancel()
	}()

	for {
		select {
		case <-c.closed:
			return
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/poll/"+c.session+"/events", nil)
		if err != nil {
			c.failAndClose(err)
			return
		}
		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.failAndClose(err)
			return
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.failAndClose(err)
			return
		}
		if resp.StatusCode == http.StatusNotFound {
			c.failAndClose(errConnClosed)
			return
		}
		if resp.StatusCode != http.StatusOK {
			c.failAndClose(fmt.Errorf("poll failed: status %d", resp.StatusCode))
			return
		}

		var batch []domain.Envelope
		if err := json.Unmarshal(raw, &batch); err != nil {
			c.failAndClose(fmt.Errorf("malformed poll batch: %w", err))
			return
		}
		for _, env := range batch {
			select {
			case c.events <- env:
			case <-c.closed:
				return
			}
		}
	}
}

func (c *pollConn) failAndClose(err error) {
	c.mu.Lock()
	if c.readErr == nil {
		c.readErr = err
	}
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.closed) })
}

func (c *pollConn) Send(env domain.Envelope) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	resp, err := c.client.Post(c.base+"/poll/"+c.session+"/emit", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("emit failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *pollConn) Receive() (domain.Envelope, error) {
	select {
	case env := <-c.events:
		return env, nil
	case <-c.closed:
		// Drain anything buffered before reporting the session gone.
		select {
		case env := <-c.events:
			return env, nil
		default:
		}
		c.mu.Lock()
		err := c.readErr
		c.mu.Unlock()
		if err == nil {
			err = errConnClosed
		}
		return domain.Envelope{}, err
	}
}

func (c *pollConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	req, err := http.NewRequest(http.MethodDelete, c.base+"/poll/"+c.session, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
