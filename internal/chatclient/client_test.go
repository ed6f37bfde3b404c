package chatclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"questchat-ws/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []domain.Envelope
	in     chan domain.Envelope
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan domain.Envelope, 32),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) Send(env domain.Envelope) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	c.mu.Lock()
	c.sent = append(c.sent, env)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Receive() (domain.Envelope, error) {
	select {
	case env := <-c.in:
		return env, nil
	case <-c.closed:
		return domain.Envelope{}, errConnClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) push(t *testing.T, eventType string, payload interface{}) {
	t.Helper()
	env, err := domain.NewEnvelope(eventType, payload)
	require.NoError(t, err)
	c.in <- env
}

func (c *fakeConn) pushAck(t *testing.T, ackID string, success bool, errMsg string) {
	t.Helper()
	env, err := domain.NewEnvelope(domain.EventAck, domain.AckPayload{Success: success, Error: errMsg})
	require.NoError(t, err)
	env.AckID = ackID
	c.in <- env
}

func (c *fakeConn) sentByType(eventType string) []domain.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Envelope
	for _, env := range c.sent {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	failures int // >0: fail that many dials; <0: fail every dial
	failMsg  string
	dials    int
}

func (d *fakeDialer) Name() string { return "fake" }

func (d *fakeDialer) Dial(_ context.Context, _ string, _ Credentials) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failures != 0 {
		if d.failures > 0 {
			d.failures--
		}
		return nil, errors.New(d.failMsg)
	}
	conn := newFakeConn()
	env, err := domain.NewEnvelope(domain.EventConnected, domain.ConnectedPayload{
		ConnectionID: fmt.Sprintf("conn-%d", len(d.conns)+1),
	})
	if err != nil {
		return nil, err
	}
	conn.in <- env
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) conn(t *testing.T, i int) *fakeConn {
	t.Helper()
	require.Eventually(t, func() bool {
		d.mu.Lock()
		defer d.mu.Unlock()
		return len(d.conns) > i
	}, time.Second, 5*time.Millisecond)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func testOptions(d Dialer) Options {
	return Options{
		ServerURL:           "http://gateway.test",
		Dialers:             []Dialer{d},
		ReconnectAttempts:   2,
		ReconnectDelay:      5 * time.Millisecond,
		TypingExpiry:        60 * time.Millisecond,
		TransientErrorClear: 50 * time.Millisecond,
		CommandErrorClear:   50 * time.Millisecond,
		AckTimeout:          150 * time.Millisecond,
		HandshakeTimeout:    300 * time.Millisecond,
	}
}

var (
	testActor = domain.User{ID: "u1", Nickname: "Alice", Role: domain.RoleUser}
	testAdmin = domain.User{ID: "a1", Nickname: "Root", Role: domain.RoleAdmin}
)

func newTestClient(t *testing.T, d *fakeDialer) *Client {
	t.Helper()
	c := New(testOptions(d))
	t.Cleanup(c.Close)
	return c
}

func connectAs(t *testing.T, c *Client, actor domain.User) {
	t.Helper()
	c.Connect(actor, "valid-token")
	require.Eventually(t, c.IsConnected, time.Second, 5*time.Millisecond)
}

func TestConnectHandshake(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	connectAs(t, c, testActor)
	assert.Equal(t, "conn-1", c.ConnectionID())
	assert.Nil(t, c.Err())
}

func TestConnectRequiresCredentials(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	c.Connect(domain.User{}, "valid-token")
	c.Connect(testActor, "")

	time.Sleep(30 * time.Millisecond)
	assert.False(t, c.IsConnected())
	assert.Zero(t, d.dialCount(), "no dial without full credentials")
}

func TestConnectWithSameCredentialsIsIdempotent(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	connectAs(t, c, testActor)
	c.Connect(testActor, "valid-token")

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount())
	assert.Equal(t, "conn-1", c.ConnectionID())
}

func TestCredentialChangeTearsDownAndRedials(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	connectAs(t, c, testActor)
	c.Connect(testAdmin, "valid-token")

	require.Eventually(t, func() bool {
		return c.ConnectionID() == "conn-2"
	}, time.Second, 5*time.Millisecond)
}

func TestRejoinsRoomAfterReconnect(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)

	c.SetActiveRoom("r1")
	first := d.conn(t, 0)
	require.Eventually(t, func() bool {
		return len(first.sentByType(domain.CommandJoinRoom)) == 1
	}, time.Second, 5*time.Millisecond)

	// Simulate the gateway dropping the connection.
	first.Close()

	second := d.conn(t, 1)
	require.Eventually(t, func() bool {
		return len(second.sentByType(domain.CommandJoinRoom)) == 1
	}, time.Second, 5*time.Millisecond)

	var p domain.RoomPayload
	require.NoError(t, json.Unmarshal(second.sentByType(domain.CommandJoinRoom)[0].Data, &p))
	assert.Equal(t, "r1", p.RoomID)
}

func TestReconnectAttemptsAreBounded(t *testing.T) {
	d := &fakeDialer{failures: -1, failMsg: "connection refused"}
	c := newTestClient(t, d)

	c.Connect(testActor, "valid-token")
	require.Eventually(t, func() bool {
		return d.dialCount() == 2 // ReconnectAttempts in testOptions
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, d.dialCount(), "no dials beyond the attempt cap")
	assert.False(t, c.IsConnected())
}

func TestExplicitReconnect(t *testing.T) {
	d := &fakeDialer{failures: 2, failMsg: "connection refused"}
	c := newTestClient(t, d)

	c.Connect(testActor, "valid-token")
	require.Eventually(t, func() bool { return d.dialCount() == 2 }, time.Second, 5*time.Millisecond)
	require.False(t, c.IsConnected())

	require.Eventually(t, func() bool {
		c.Reconnect()
		return c.IsConnected()
	}, time.Second, 5*time.Millisecond)

	// Reconnect while connected is a no-op.
	dials := d.dialCount()
	c.Reconnect()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, dials, d.dialCount())
}

func TestAuthErrorPersists(t *testing.T) {
	d := &fakeDialer{failures: -1, failMsg: "authentication failed: invalid token"}
	c := newTestClient(t, d)

	c.Connect(testActor, "bad-token")
	require.Eventually(t, func() bool {
		err := c.Err()
		return err != nil && err.Kind == ErrorAuth
	}, time.Second, 5*time.Millisecond)

	// Auth errors outlive the transient auto-clear window.
	time.Sleep(120 * time.Millisecond)
	err := c.Err()
	require.NotNil(t, err)
	assert.Equal(t, ErrorAuth, err.Kind)
}

func TestTransientErrorAutoClears(t *testing.T) {
	d := &fakeDialer{failures: -1, failMsg: "connection refused"}
	opts := testOptions(d)
	opts.ReconnectAttempts = 1
	c := New(opts)
	t.Cleanup(c.Close)

	c.Connect(testActor, "valid-token")
	require.Eventually(t, func() bool {
		err := c.Err()
		return err != nil && err.Kind == ErrorTransient
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return c.Err() == nil
	}, time.Second, 5*time.Millisecond)
}

func TestRoomJoinedSeedsState(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventRoomJoined, domain.RoomJoinedPayload{
		RoomID:   "r1",
		RoomName: "Warriors Guild",
		History: []domain.ChatMessage{
			userMsg("m1", "r1", "u2", "hey"),
			userMsg("m2", "r1", "u3", "yo"),
		},
		OnlineUsers: []domain.User{{ID: "u2"}, {ID: "u3"}},
	})

	require.Eventually(t, func() bool { return len(c.Messages()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Len(t, c.OnlineUsers(), 2)
	assert.Zero(t, c.UnreadCount())
}

func TestStaleRoomJoinedIsDropped(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r2")
	conn := d.conn(t, 0)

	// Late acknowledgement from a room we already abandoned.
	conn.push(t, domain.EventRoomJoined, domain.RoomJoinedPayload{
		RoomID:      "r1",
		History:     []domain.ChatMessage{userMsg("m1", "r1", "u2", "old")},
		OnlineUsers: []domain.User{{ID: "u2"}},
	})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.Messages())
	assert.Empty(t, c.OnlineUsers())
}

func TestSendMessageOptimisticThenCanonical(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	c.SendMessage("hello", "")

	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.True(t, IsTemporaryID(msgs[0].ID))
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, domain.ModerationPending, msgs[0].ModerationStatus)
	assert.True(t, msgs[0].IsOptimistic)

	sends := conn.sentByType(domain.CommandSendMessage)
	require.Len(t, sends, 1)
	require.NotEmpty(t, sends[0].AckID)

	conn.pushAck(t, sends[0].AckID, true, "")
	echo := userMsg("m42", "r1", testActor.ID, "hello")
	conn.push(t, domain.EventNewMessage, echo)

	require.Eventually(t, func() bool {
		msgs := c.Messages()
		return len(msgs) == 1 && msgs[0].ID == "m42" && !msgs[0].IsOptimistic
	}, time.Second, 5*time.Millisecond)
	assert.Nil(t, c.Err())
}

func TestSendMessageRollbackOnFailedAck(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventNewMessage, userMsg("m1", "r1", "u2", "existing"))
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)
	before := c.Messages()

	c.SendMessage("rejected text", "")
	sends := conn.sentByType(domain.CommandSendMessage)
	require.Len(t, sends, 1)
	conn.pushAck(t, sends[0].AckID, false, "content flagged by moderation")

	require.Eventually(t, func() bool {
		err := c.Err()
		return err != nil && err.Message == "content flagged by moderation"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, before, c.Messages(), "store must return to its pre-send state")
}

func TestSendMessageRollbackOnAckTimeout(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")

	c.SendMessage("into the void", "")
	require.Len(t, c.Messages(), 1)

	var errMsg string
	require.Eventually(t, func() bool {
		err := c.Err()
		if err != nil {
			errMsg = err.Message
		}
		return len(c.Messages()) == 0 && err != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "acknowledgement timed out", errMsg)
}

func TestSendMessageRejectsBlankContent(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	c.SendMessage("   \t  ", "")

	err := c.Err()
	assert.Empty(t, c.Messages())
	assert.Empty(t, conn.sentByType(domain.CommandSendMessage))
	require.NotNil(t, err)
	assert.Equal(t, ErrorCommand, err.Kind)
}

func TestSendMessageWhileDisconnected(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)

	c.SendMessage("hello?", "")

	err := c.Err()
	assert.Empty(t, c.Messages())
	assert.Zero(t, d.dialCount())
	require.NotNil(t, err)
	assert.Equal(t, "cannot send message", err.Message)
}

func TestDeleteMessageRequiresModerator(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor) // plain user
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventNewMessage, userMsg("m1", "r1", "u2", "keep me"))
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)

	c.DeleteMessage("m1")

	assert.Empty(t, conn.sentByType(domain.CommandDeleteMessage), "nothing emitted without permission")
	assert.Len(t, c.Messages(), 1)
	require.NotNil(t, c.Err())
	assert.Equal(t, ErrorPermission, c.Err().Kind)
}

func TestDeleteMessageAsAdmin(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testAdmin)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventNewMessage, userMsg("m1", "r1", "u2", "offensive"))
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)

	c.DeleteMessage("m1")
	deletes := conn.sentByType(domain.CommandDeleteMessage)
	require.Len(t, deletes, 1)
	conn.pushAck(t, deletes[0].AckID, true, "")

	require.Eventually(t, func() bool { return len(c.Messages()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Nil(t, c.Err())
}

func TestDeleteMessageFailedAckKeepsMessage(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testAdmin)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventNewMessage, userMsg("m1", "r1", "u2", "stays"))
	require.Eventually(t, func() bool { return len(c.Messages()) == 1 }, time.Second, 5*time.Millisecond)

	c.DeleteMessage("m1")
	deletes := conn.sentByType(domain.CommandDeleteMessage)
	require.Len(t, deletes, 1)
	conn.pushAck(t, deletes[0].AckID, false, "message not found")

	require.Eventually(t, func() bool {
		err := c.Err()
		return err != nil && err.Message == "message not found"
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, c.Messages(), 1)
}

func TestRoomIsolation(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventNewMessage, userMsg("m9", "r2", "u2", "wrong room"))
	conn.push(t, domain.EventUserTyping, domain.TypingPayload{RoomID: "r2", Typing: true, User: domain.User{ID: "u2", Nickname: "Eve"}})
	conn.push(t, domain.EventUserJoined, domain.PresencePayload{RoomID: "r2", User: domain.User{ID: "u2"}})

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, c.Messages())
	assert.Empty(t, c.TypingUsers())
	assert.Empty(t, c.OnlineUsers())
	assert.Zero(t, c.UnreadCount())
}

func TestRoomSwitchResetsEverything(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventUserJoined, domain.PresencePayload{RoomID: "r1", User: domain.User{ID: "u2"}})
	conn.push(t, domain.EventUserJoined, domain.PresencePayload{RoomID: "r1", User: domain.User{ID: "u3"}})
	conn.push(t, domain.EventUserTyping, domain.TypingPayload{RoomID: "r1", Typing: true, User: domain.User{ID: "u2", Nickname: "Eve"}})
	conn.push(t, domain.EventNewMessage, userMsg("m1", "r1", "u2", "hi"))
	require.Eventually(t, func() bool {
		return len(c.OnlineUsers()) == 2 && len(c.TypingUsers()) == 1 && c.UnreadCount() == 1
	}, time.Second, 5*time.Millisecond)

	c.SetActiveRoom("r2")

	assert.Empty(t, c.OnlineUsers())
	assert.Empty(t, c.TypingUsers())
	assert.Empty(t, c.Messages())
	assert.Zero(t, c.UnreadCount())

	var leavePayload domain.RoomPayload
	leaves := conn.sentByType(domain.CommandLeaveRoom)
	require.Len(t, leaves, 1)
	require.NoError(t, json.Unmarshal(leaves[0].Data, &leavePayload))
	assert.Equal(t, "r1", leavePayload.RoomID)
	assert.Len(t, conn.sentByType(domain.CommandJoinRoom), 2)
}

func TestRoomSwitchDropsRacingRoomEvents(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	conn := d.conn(t, 0)

	// Events for the old room race the switch on the read loop; none of them
	// may ever land in the new room's state.
	for i := 0; i < 200; i++ {
		c.SetActiveRoom("r1")
		conn.push(t, domain.EventRoomJoined, domain.RoomJoinedPayload{
			RoomID:      "r1",
			History:     []domain.ChatMessage{userMsg(fmt.Sprintf("h%d", i), "r1", "u2", "history")},
			OnlineUsers: []domain.User{{ID: "u2"}},
		})
		conn.push(t, domain.EventNewMessage, userMsg(fmt.Sprintf("m%d", i), "r1", "u2", "live"))
		conn.push(t, domain.EventUserJoined, domain.PresencePayload{RoomID: "r1", User: domain.User{ID: "u3"}})
		c.SetActiveRoom("r2")

		for _, m := range c.Messages() {
			t.Fatalf("iteration %d: stale %s message %s visible in r2", i, m.RoomID, m.ID)
		}
		for _, u := range c.OnlineUsers() {
			t.Fatalf("iteration %d: stale presence entry %s visible in r2", i, u.ID)
		}
		if n := c.UnreadCount(); n != 0 {
			t.Fatalf("iteration %d: unread counter %d survived the room switch", i, n)
		}
	}
}

func TestTypingEventsTrackAndExpire(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventUserTyping, domain.TypingPayload{
		RoomID: "r1", Typing: true, User: domain.User{ID: "u2", Nickname: "Bob"},
	})
	require.Eventually(t, func() bool {
		typing := c.TypingUsers()
		return len(typing) == 1 && typing[0].Name == "Bob"
	}, time.Second, 5*time.Millisecond)

	// Expires on its own after the quiet window.
	require.Eventually(t, func() bool {
		return len(c.TypingUsers()) == 0
	}, time.Second, 5*time.Millisecond)

	// Explicit stop removes immediately.
	conn.push(t, domain.EventUserTyping, domain.TypingPayload{
		RoomID: "r1", Typing: true, User: domain.User{ID: "u2", Nickname: "Bob"},
	})
	require.Eventually(t, func() bool { return len(c.TypingUsers()) == 1 }, time.Second, 5*time.Millisecond)
	conn.push(t, domain.EventUserTyping, domain.TypingPayload{
		RoomID: "r1", Typing: false, User: domain.User{ID: "u2", Nickname: "Bob"},
	})
	require.Eventually(t, func() bool { return len(c.TypingUsers()) == 0 }, time.Second, 5*time.Millisecond)
}

func TestStartStopTypingEmit(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	c.StartTyping()
	c.StopTyping()

	assert.Len(t, conn.sentByType(domain.CommandTypingStart), 1)
	assert.Len(t, conn.sentByType(domain.CommandTypingStop), 1)
	// Local typing state only changes through received events.
	assert.Empty(t, c.TypingUsers())
}

func TestUnreadCounting(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	conn.push(t, domain.EventNewMessage, userMsg("m1", "r1", "u2", "one"))
	conn.push(t, domain.EventNewMessage, userMsg("m2", "r1", "u3", "two"))
	conn.push(t, domain.EventNewMessage, userMsg("m3", "r1", testActor.ID, "mine"))

	require.Eventually(t, func() bool { return len(c.Messages()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, c.UnreadCount(), "own messages do not count as unread")

	c.ClearUnread()
	assert.Zero(t, c.UnreadCount())
}

func TestGatewayErrorEvent(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	conn := d.conn(t, 0)

	conn.push(t, domain.EventError, domain.ErrorPayload{Message: "rate limited"})

	require.Eventually(t, func() bool {
		err := c.Err()
		return err != nil && err.Message == "rate limited"
	}, time.Second, 5*time.Millisecond)

	c.ClearError()
	assert.Nil(t, c.Err())
}

func TestCloseIsIdempotentAndLeavesRoom(t *testing.T) {
	d := &fakeDialer{}
	c := newTestClient(t, d)
	connectAs(t, c, testActor)
	c.SetActiveRoom("r1")
	conn := d.conn(t, 0)

	c.Close()
	c.Close()

	assert.False(t, c.IsConnected())
	assert.Empty(t, c.ConnectionID())
	assert.NotEmpty(t, conn.sentByType(domain.CommandLeaveRoom))
}

func TestClassifyConnectError(t *testing.T) {
	assert.Equal(t, ErrorAuth, classifyConnectError("authentication failed"))
	assert.Equal(t, ErrorAuth, classifyConnectError("invalid token"))
	assert.Equal(t, ErrorAuth, classifyConnectError("Auth session expired"))
	assert.Equal(t, ErrorTransient, classifyConnectError("connection refused"))
	assert.Equal(t, ErrorTransient, classifyConnectError("i/o timeout"))
}
