package chatclient

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"questchat-ws/internal/domain"

	"github.com/google/uuid"
)

const (
	defaultReconnectAttempts   = 5
	defaultReconnectDelay      = 1 * time.Second
	defaultTypingExpiry        = 3 * time.Second
	defaultTransientErrorClear = 3 * time.Second
	defaultCommandErrorClear   = 5 * time.Second
	defaultAckTimeout          = 5 * time.Second
	defaultHandshakeTimeout    = 10 * time.Second
)

// Options configures a Client. Zero values fall back to the defaults above.
type Options struct {
	ServerURL string

	// Dialers are tried in order on every connection attempt. Defaults to
	// websocket with long-polling as the fallback.
	Dialers []Dialer

	ReconnectAttempts   int
	ReconnectDelay      time.Duration
	TypingExpiry        time.Duration
	TransientErrorClear time.Duration
	CommandErrorClear   time.Duration
	AckTimeout          time.Duration
	HandshakeTimeout    time.Duration

	// OnUpdate fires after every observable state change. Optional; called
	// outside all internal locks.
	OnUpdate func()
}

// ConnectionStatus is a snapshot of the transport state.
type ConnectionStatus struct {
	ConnectionID string
	Connected    bool
	RoomID       string
}

// Client is the chat synchronization client: it owns the single gateway
// connection, the active room membership, and the message, presence, typing,
// unread and error state derived from gateway events. Consumers read
// snapshots and route every write through the command methods.
type Client struct {
	opts    Options
	store   *messageStore
	tracker *presenceTracker

	// mu guards the connection and room state. Lock order: mu before the
	// store and tracker locks; notify always runs with no locks held.
	mu           sync.Mutex
	actor        domain.User
	token        string
	conn         Conn
	connGen      int
	dialing      bool
	connected    bool
	connectionID string
	activeRoom   string
	unread       int
	lastErr      *ClientError
	errTimer     *time.Timer
	pendingAcks  map[string]chan domain.AckPayload
	closed       bool
}

func New(opts Options) *Client {
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = defaultReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.TypingExpiry <= 0 {
		opts.TypingExpiry = defaultTypingExpiry
	}
	if opts.TransientErrorClear <= 0 {
		opts.TransientErrorClear = defaultTransientErrorClear
	}
	if opts.CommandErrorClear <= 0 {
		opts.CommandErrorClear = defaultCommandErrorClear
	}
	if opts.AckTimeout <= 0 {
		opts.AckTimeout = defaultAckTimeout
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if len(opts.Dialers) == 0 {
		opts.Dialers = []Dialer{
			WebSocketDialer{HandshakeTimeout: opts.HandshakeTimeout},
			PollingDialer{},
		}
	}

	c := &Client{
		opts:        opts,
		store:       newMessageStore(),
		pendingAcks: make(map[string]chan domain.AckPayload),
	}
	c.tracker = newPresenceTracker(opts.TypingExpiry, c.notify)
	return c
}

func (c *Client) notify() {
	if c.opts.OnUpdate != nil {
		c.opts.OnUpdate()
	}
}

// Connect establishes the gateway connection for the given credentials.
// No-op when either credential is absent. A live connection for different
// credentials is fully torn down first; reconnecting with the same
// credentials while connected is a no-op.
func (c *Client) Connect(actor domain.User, token string) {
	if actor.ID == "" || token == "" {
		log.Printf("chatclient: missing credentials, staying disconnected")
		return
	}

	c.mu.Lock()
	if c.actor.ID == actor.ID && c.token == token && (c.connected || c.dialing) {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.closed = false
	c.actor = actor
	c.token = token
	c.dialing = true
	gen := c.connGen
	c.mu.Unlock()

	log.Printf("chatclient: connecting as %s", actor.ID)
	go c.run(gen)
}

// Reconnect requests a fresh connection when currently disconnected. No-op
// while connected or while a dial loop is already running.
func (c *Client) Reconnect() {
	c.mu.Lock()
	if c.closed || c.connected || c.dialing || c.actor.ID == "" || c.token == "" {
		c.mu.Unlock()
		return
	}
	c.clearErrorLocked()
	c.connGen++
	gen := c.connGen
	c.dialing = true
	c.mu.Unlock()

	c.notify()
	go c.run(gen)
}

// Close tears the client down: leaves the active room if joined, closes the
// transport, removes in-flight ack waiters and cancels all timers. Safe to
// call repeatedly.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.connected && c.conn != nil && c.activeRoom != "" {
		if env, err := domain.NewEnvelope(domain.CommandLeaveRoom, domain.RoomPayload{RoomID: c.activeRoom}); err == nil {
			_ = c.conn.Send(env)
		}
	}
	c.teardownLocked()
	c.clearErrorLocked()
	c.mu.Unlock()

	c.tracker.reset()
	c.notify()
	log.Printf("chatclient: closed")
}

// teardownLocked invalidates any running dial/read loop and drops the
// transport. Callers hold c.mu.
func (c *Client) teardownLocked() {
	c.connGen++
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.connected = false
	c.connectionID = ""
	c.dialing = false
	c.failPendingLocked("connection closed")
}

func (c *Client) failPendingLocked(reason string) {
	for id, ch := range c.pendingAcks {
		select {
		case ch <- domain.AckPayload{Success: false, Error: reason}:
		default:
		}
		delete(c.pendingAcks, id)
	}
}

func (c *Client) stale(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.connGen || c.closed
}

// run owns one connection generation: dial with bounded retries, pump
// events, and redial with a fresh attempt budget after an established
// connection drops. Exits when the generation is invalidated or the attempt
// budget runs out.
func (c *Client) run(gen int) {
	defer func() {
		c.mu.Lock()
		if gen == c.connGen {
			c.dialing = false
		}
		c.mu.Unlock()
	}()

	for {
		conn, connID, ok := c.dialWithRetry(gen)
		if !ok {
			return
		}
		if !c.attachConn(gen, conn, connID) {
			_ = conn.Close()
			return
		}
		c.readLoop(gen, conn)
		if !c.detachConn(gen, conn) {
			return
		}
	}
}

func (c *Client) dialWithRetry(gen int) (Conn, string, bool) {
	for attempt := 1; attempt <= c.opts.ReconnectAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(c.opts.ReconnectDelay)
		}
		if c.stale(gen) {
			return nil, "", false
		}

		c.mu.Lock()
		creds := Credentials{
			Token:    c.token,
			UserID:   c.actor.ID,
			Nickname: c.actor.Nickname,
			Role:     c.actor.Role,
		}
		serverURL := c.opts.ServerURL
		c.mu.Unlock()

		for _, d := range c.opts.Dialers {
			conn, connID, err := c.dialOne(d, serverURL, creds)
			if err != nil {
				kind := classifyConnectError(err.Error())
				log.Printf("chatclient: %s dial attempt %d failed: %v", d.Name(), attempt, err)
				c.mu.Lock()
				c.setErrorLocked(kind, err.Error())
				c.mu.Unlock()
				c.notify()
				continue
			}
			return conn, connID, true
		}
	}
	log.Printf("chatclient: reconnect attempts exhausted, staying disconnected")
	return nil, "", false
}

func (c *Client) dialOne(d Dialer, serverURL string, creds Credentials) (Conn, string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.HandshakeTimeout)
	defer cancel()

	conn, err := d.Dial(ctx, serverURL, creds)
	if err != nil {
		return nil, "", err
	}
	connID, err := awaitConnected(conn, c.opts.HandshakeTimeout)
	if err != nil {
		_ = conn.Close()
		return nil, "", err
	}
	return conn, connID, nil
}

// attachConn publishes the established connection and re-joins the
// remembered active room.
func (c *Client) attachConn(gen int, conn Conn, connID string) bool {
	c.mu.Lock()
	if gen != c.connGen || c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.connected = true
	c.connectionID = connID
	c.clearErrorLocked()
	room := c.activeRoom
	c.mu.Unlock()

	log.Printf("chatclient: connected (%s)", connID)
	c.notify()
	if room != "" {
		log.Printf("chatclient: rejoining room %s", room)
		c.emit(conn, domain.CommandJoinRoom, domain.RoomPayload{RoomID: room})
	}
	return true
}

// detachConn records a dropped connection. Returns false when the drop was
// caused by an explicit teardown, which already cleaned up.
func (c *Client) detachConn(gen int, conn Conn) bool {
	_ = conn.Close()
	c.mu.Lock()
	if gen != c.connGen || c.closed {
		c.mu.Unlock()
		return false
	}
	c.conn = nil
	c.connected = false
	c.connectionID = ""
	c.failPendingLocked("connection lost")
	c.mu.Unlock()

	log.Printf("chatclient: disconnected")
	c.notify()
	return true
}

func (c *Client) readLoop(gen int, conn Conn) {
	for {
		env, err := conn.Receive()
		if err != nil {
			if !c.stale(gen) {
				log.Printf("chatclient: read error: %v", err)
			}
			return
		}
		c.handleEvent(gen, env)
	}
}

func (c *Client) handleEvent(gen int, env domain.Envelope) {
	if c.stale(gen) {
		return
	}

	switch env.Type {
	case domain.EventAck:
		var p domain.AckPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Printf("chatclient: malformed ack: %v", err)
			return
		}
		c.handleAck(env.AckID, p)

	case domain.EventRoomJoined:
		var p domain.RoomJoinedPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			log.Printf("chatclient: malformed room_joined: %v", err)
			return
		}
		c.handleRoomJoined(p)

	case domain.EventNewMessage:
		var msg domain.ChatMessage
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			log.Printf("chatclient: malformed new_message: %v", err)
			return
		}
		c.handleNewMessage(msg)

	case domain.EventUserTyping:
		var p domain.TypingPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.handleUserTyping(p)

	case domain.EventUserJoined:
		var p domain.PresencePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.mu.Lock()
		changed := c.activeRoom != "" && p.RoomID == c.activeRoom && c.tracker.addOnline(p.User)
		c.mu.Unlock()
		if changed {
			c.notify()
		}

	case domain.EventUserLeft:
		var p domain.PresencePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		c.mu.Lock()
		changed := c.activeRoom != "" && p.RoomID == c.activeRoom && c.tracker.removeOnline(p.User.ID)
		c.mu.Unlock()
		if changed {
			c.notify()
		}

	case domain.EventError:
		var p domain.ErrorPayload
		_ = json.Unmarshal(env.Data, &p)
		if p.Message == "" {
			p.Message = "gateway error"
		}
		c.mu.Lock()
		c.setErrorLocked(ErrorCommand, p.Message)
		c.mu.Unlock()
		c.notify()

	default:
		log.Printf("chatclient: unknown event type %q", env.Type)
	}
}

func (c *Client) handleAck(ackID string, p domain.AckPayload) {
	if ackID == "" {
		return
	}
	c.mu.Lock()
	ch, ok := c.pendingAcks[ackID]
	delete(c.pendingAcks, ackID)
	c.mu.Unlock()
	if ok {
		ch <- p
	}
}

// handleRoomJoined seeds history, presence and the unread counter, but only
// when the acknowledgement is for the room that is still active. Stale acks
// from a just-abandoned room are dropped whole. The room check and the state
// mutation happen under one critical section so a concurrent room switch
// cannot land between them.
func (c *Client) handleRoomJoined(p domain.RoomJoinedPayload) {
	c.mu.Lock()
	if p.RoomID != c.activeRoom {
		c.mu.Unlock()
		return
	}
	c.unread = 0
	c.store.seed(p.History)
	c.tracker.seedOnline(p.OnlineUsers)
	c.mu.Unlock()

	log.Printf("chatclient: joined room %s (%s)", p.RoomID, p.RoomName)
	c.notify()
}

func (c *Client) handleNewMessage(msg domain.ChatMessage) {
	c.mu.Lock()
	if c.activeRoom == "" || msg.RoomID != c.activeRoom {
		c.mu.Unlock()
		return
	}
	if msg.AuthorID() != c.actor.ID {
		c.unread++
	}
	c.store.apply(msg, c.actor.ID)
	c.mu.Unlock()

	c.notify()
}

func (c *Client) handleUserTyping(p domain.TypingPayload) {
	c.mu.Lock()
	if c.activeRoom == "" || p.RoomID != c.activeRoom {
		c.mu.Unlock()
		return
	}
	c.tracker.setTyping(p.User, p.Typing)
	c.mu.Unlock()
	c.notify()
}

// SetActiveRoom switches the joined room. Presence, typing, messages and the
// unread counter reset immediately; the new history arrives with the
// room_joined acknowledgement. Passing "" just leaves the current room.
func (c *Client) SetActiveRoom(roomID string) {
	c.mu.Lock()
	if roomID == c.activeRoom {
		c.mu.Unlock()
		return
	}
	prev := c.activeRoom
	c.activeRoom = roomID
	c.unread = 0
	c.tracker.reset()
	c.store.reset()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	c.notify()

	if !connected || conn == nil {
		return
	}
	if prev != "" {
		log.Printf("chatclient: leaving room %s", prev)
		c.emit(conn, domain.CommandLeaveRoom, domain.RoomPayload{RoomID: prev})
	}
	if roomID != "" {
		log.Printf("chatclient: joining room %s", roomID)
		c.emit(conn, domain.CommandJoinRoom, domain.RoomPayload{RoomID: roomID})
	}
}

func (c *Client) emit(conn Conn, eventType string, payload interface{}) {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		log.Printf("chatclient: encode %s: %v", eventType, err)
		return
	}
	if err := conn.Send(env); err != nil {
		log.Printf("chatclient: emit %s: %v", eventType, err)
	}
}

// emitWithAck sends a command carrying an ack id and returns a channel that
// yields exactly one result: the gateway's acknowledgement, or a synthesized
// failure on send error, timeout or connection loss.
func (c *Client) emitWithAck(conn Conn, eventType string, payload interface{}) <-chan domain.AckPayload {
	out := make(chan domain.AckPayload, 1)

	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		out <- domain.AckPayload{Success: false, Error: err.Error()}
		return out
	}
	ackID := uuid.NewString()
	env.AckID = ackID

	inner := make(chan domain.AckPayload, 1)
	c.mu.Lock()
	c.pendingAcks[ackID] = inner
	c.mu.Unlock()

	if err := conn.Send(env); err != nil {
		c.mu.Lock()
		delete(c.pendingAcks, ackID)
		c.mu.Unlock()
		out <- domain.AckPayload{Success: false, Error: err.Error()}
		return out
	}

	go func() {
		timer := time.NewTimer(c.opts.AckTimeout)
		defer timer.Stop()
		select {
		case res := <-inner:
			out <- res
		case <-timer.C:
			c.mu.Lock()
			delete(c.pendingAcks, ackID)
			c.mu.Unlock()
			out <- domain.AckPayload{Success: false, Error: "acknowledgement timed out"}
		}
	}()
	return out
}

// SendMessage appends an optimistic message and emits the send command. The
// canonical gateway push replaces the optimistic entry; a failed or timed-out
// acknowledgement rolls it back and surfaces the error.
func (c *Client) SendMessage(content, repliedTo string) {
	content = strings.TrimSpace(content)

	c.mu.Lock()
	if !c.connected || c.conn == nil || c.activeRoom == "" || content == "" {
		c.setErrorLocked(ErrorCommand, "cannot send message")
		c.mu.Unlock()
		c.notify()
		return
	}
	conn := c.conn
	room := c.activeRoom
	actor := c.actor
	now := time.Now().UTC()
	optimistic := domain.ChatMessage{
		ID:               tempMessageID(),
		RoomID:           room,
		User:             &actor,
		Content:          content,
		MessageType:      domain.MessageTypeText,
		ModerationStatus: domain.ModerationPending,
		RepliedTo:        repliedTo,
		CreatedAt:        now,
		UpdatedAt:        now,
		IsOptimistic:     true,
	}
	c.store.append(optimistic)
	c.mu.Unlock()
	c.notify()

	ack := c.emitWithAck(conn, domain.CommandSendMessage, domain.SendMessagePayload{
		RoomID:    room,
		Content:   content,
		RepliedTo: repliedTo,
	})
	go func() {
		res := <-ack
		if res.Success {
			return
		}
		c.store.remove(optimistic.ID)
		msg := res.Error
		if msg == "" {
			msg = "failed to send message"
		}
		c.mu.Lock()
		c.setErrorLocked(ErrorCommand, msg)
		c.mu.Unlock()
		c.notify()
	}()
}

// StartTyping announces typing intent for the active room. Fire and forget;
// local typing state changes only through received events.
func (c *Client) StartTyping() {
	c.emitTyping(domain.CommandTypingStart)
}

func (c *Client) StopTyping() {
	c.emitTyping(domain.CommandTypingStop)
}

func (c *Client) emitTyping(command string) {
	c.mu.Lock()
	conn := c.conn
	room := c.activeRoom
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil || room == "" {
		return
	}
	c.emit(conn, command, domain.RoomPayload{RoomID: room})
}

// DeleteMessage emits the admin delete command for a message. Rejected
// client-side for non-moderator actors: nothing is emitted and a permission
// error is recorded.
func (c *Client) DeleteMessage(messageID string) {
	c.mu.Lock()
	if !c.actor.Role.CanModerate() {
		log.Printf("chatclient: %s lacks moderation rights, delete refused", c.actor.ID)
		c.setErrorLocked(ErrorPermission, "no permission to delete messages")
		c.mu.Unlock()
		c.notify()
		return
	}
	if !c.connected || c.conn == nil || c.activeRoom == "" {
		c.setErrorLocked(ErrorCommand, "cannot delete message")
		c.mu.Unlock()
		c.notify()
		return
	}
	conn := c.conn
	room := c.activeRoom
	c.mu.Unlock()

	ack := c.emitWithAck(conn, domain.CommandDeleteMessage, domain.DeleteMessagePayload{
		RoomID:    room,
		MessageID: messageID,
	})
	go func() {
		res := <-ack
		if res.Success {
			c.store.remove(messageID)
			c.notify()
			return
		}
		msg := res.Error
		if msg == "" {
			msg = "failed to delete message"
		}
		c.mu.Lock()
		c.setErrorLocked(ErrorCommand, msg)
		c.mu.Unlock()
		c.notify()
	}()
}

// ClearUnread resets the unread counter.
func (c *Client) ClearUnread() {
	c.mu.Lock()
	c.unread = 0
	c.mu.Unlock()
	c.notify()
}

// ClearError discards the current error, whatever its kind.
func (c *Client) ClearError() {
	c.mu.Lock()
	c.clearErrorLocked()
	c.mu.Unlock()
	c.notify()
}

// setErrorLocked records an error and arms the auto-clear timer for kinds
// that expire. Callers hold c.mu.
func (c *Client) setErrorLocked(kind ErrorKind, msg string) {
	if c.errTimer != nil {
		c.errTimer.Stop()
		c.errTimer = nil
	}
	current := &ClientError{Kind: kind, Message: msg}
	c.lastErr = current

	var ttl time.Duration
	switch kind {
	case ErrorTransient:
		ttl = c.opts.TransientErrorClear
	case ErrorCommand:
		ttl = c.opts.CommandErrorClear
	}
	if ttl <= 0 {
		return
	}
	c.errTimer = time.AfterFunc(ttl, func() {
		c.mu.Lock()
		cleared := c.lastErr == current
		if cleared {
			c.lastErr = nil
			c.errTimer = nil
		}
		c.mu.Unlock()
		if cleared {
			c.notify()
		}
	})
}

func (c *Client) clearErrorLocked() {
	if c.errTimer != nil {
		c.errTimer.Stop()
		c.errTimer = nil
	}
	c.lastErr = nil
}

// Messages returns the ordered message list for the active room.
func (c *Client) Messages() []domain.ChatMessage {
	return c.store.snapshot()
}

// TypingUsers returns the users currently typing in the active room.
func (c *Client) TypingUsers() []TypingUser {
	return c.tracker.typingSnapshot()
}

// OnlineUsers returns the presence set for the active room.
func (c *Client) OnlineUsers() []domain.User {
	return c.tracker.onlineSnapshot()
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

func (c *Client) ActiveRoom() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeRoom
}

func (c *Client) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unread
}

// Err returns the current error, or nil. The returned value is a copy.
func (c *Client) Err() *ClientError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr == nil {
		return nil
	}
	e := *c.lastErr
	return &e
}

// Status returns a combined connection snapshot.
func (c *Client) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionStatus{
		ConnectionID: c.connectionID,
		Connected:    c.connected,
		RoomID:       c.activeRoom,
	}
}
