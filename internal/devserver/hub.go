package devserver

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"questchat-ws/internal/domain"
	"questchat-ws/internal/infrastructure/kafka"

	"github.com/google/uuid"
)

const historyLimit = 200

// EventMirror publishes moderation-relevant events to an external pipeline.
// Nil disables mirroring.
type EventMirror interface {
	Publish(ctx context.Context, payload interface{}) error
}

type roomState struct {
	name    string
	history []domain.ChatMessage
	members map[string]*Session
}

// Hub owns every connected session and the per-room state: capped in-memory
// history plus membership. It implements the gateway side of the wire
// contract the chat client consumes.
type Hub struct {
	presence PresenceStore
	mirror   EventMirror

	mu       sync.Mutex
	rooms    map[string]*roomState
	sessions map[string]*Session
}

func NewHub(presence PresenceStore, mirror EventMirror) *Hub {
	return &Hub{
		presence: presence,
		mirror:   mirror,
		rooms:    make(map[string]*roomState),
		sessions: make(map[string]*Session),
	}
}

// Register creates a session for a handshaked user and sends the connected
// envelope that completes the client handshake.
func (h *Hub) Register(user domain.User, write func(domain.Envelope) error) *Session {
	s := &Session{
		ID:    uuid.NewString(),
		User:  user,
		write: write,
	}
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()

	env, err := domain.NewEnvelope(domain.EventConnected, domain.ConnectedPayload{ConnectionID: s.ID})
	if err == nil {
		if err := s.deliver(env); err != nil {
			log.Printf("devserver: failed to send connected to %s: %v", user.ID, err)
		}
	}
	log.Printf("devserver: client connected: %s (%s)", user.ID, s.ID)
	return s
}

// Unregister removes a session, leaving its room first.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	room := s.room
	if room != "" {
		h.leaveRoomLocked(s)
	}
	delete(h.sessions, s.ID)
	h.mu.Unlock()

	if room != "" {
		h.afterLeave(s, room)
	}
	log.Printf("devserver: client disconnected: %s (%s)", s.User.ID, s.ID)
}

// HandleEnvelope dispatches one client command.
func (h *Hub) HandleEnvelope(s *Session, env domain.Envelope) {
	switch env.Type {
	case domain.CommandJoinRoom:
		var p domain.RoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.RoomID == "" {
			h.sendError(s, "invalid join_room payload")
			return
		}
		h.joinRoom(s, p.RoomID)

	case domain.CommandLeaveRoom:
		var p domain.RoomPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
		h.leaveRoom(s, p.RoomID)

	case domain.CommandSendMessage:
		var p domain.SendMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			h.sendAck(s, env.AckID, false, "invalid send_message payload")
			return
		}
		h.sendMessage(s, p, env.AckID)

	case domain.CommandTypingStart:
		h.typing(s, env.Data, true)

	case domain.CommandTypingStop:
		h.typing(s, env.Data, false)

	case domain.CommandDeleteMessage:
		var p domain.DeleteMessagePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			h.sendAck(s, env.AckID, false, "invalid delete payload")
			return
		}
		h.deleteMessage(s, p, env.AckID)

	default:
		log.Printf("devserver: unknown command %q from %s", env.Type, s.User.ID)
		h.sendError(s, "unknown command: "+env.Type)
	}
}

func (h *Hub) joinRoom(s *Session, roomID string) {
	ctx := context.Background()

	h.mu.Lock()
	if s.room != "" && s.room != roomID {
		prev := s.room
		h.leaveRoomLocked(s)
		h.mu.Unlock()
		h.afterLeave(s, prev)
		h.mu.Lock()
	}
	room, ok := h.rooms[roomID]
	if !ok {
		room = &roomState{
			name:    roomID,
			members: make(map[string]*Session),
			history: []domain.ChatMessage{systemMessage(roomID, "Welcome to "+roomID)},
		}
		h.rooms[roomID] = room
	}
	room.members[s.ID] = s
	s.room = roomID
	history := make([]domain.ChatMessage, len(room.history))
	copy(history, room.history)
	h.mu.Unlock()

	if err := h.presence.Add(ctx, roomID, s.User); err != nil {
		log.Printf("devserver: presence add failed: %v", err)
	}
	online, err := h.presence.List(ctx, roomID)
	if err != nil {
		log.Printf("devserver: presence list failed: %v", err)
	}

	joined, err := domain.NewEnvelope(domain.EventRoomJoined, domain.RoomJoinedPayload{
		RoomID:      roomID,
		RoomName:    roomID,
		History:     history,
		OnlineUsers: online,
	})
	if err == nil {
		if err := s.deliver(joined); err != nil {
			log.Printf("devserver: failed to deliver room_joined to %s: %v", s.User.ID, err)
		}
	}

	h.broadcast(roomID, domain.EventUserJoined, domain.PresencePayload{RoomID: roomID, User: s.User}, s.ID)
	log.Printf("devserver: %s joined room %s", s.User.ID, roomID)
}

func (h *Hub) leaveRoom(s *Session, roomID string) {
	h.mu.Lock()
	if s.room != roomID {
		h.mu.Unlock()
		return
	}
	h.leaveRoomLocked(s)
	h.mu.Unlock()
	h.afterLeave(s, roomID)
}

// leaveRoomLocked detaches the session from its room. Callers hold h.mu.
func (h *Hub) leaveRoomLocked(s *Session) {
	room, ok := h.rooms[s.room]
	if ok {
		delete(room.members, s.ID)
		if len(room.members) == 0 {
			delete(h.rooms, s.room)
			log.Printf("devserver: cleaned up empty room %s", s.room)
		}
	}
	s.room = ""
}

// afterLeave runs the side effects of leaving: presence removal and the
// user_left broadcast. Called without h.mu held.
func (h *Hub) afterLeave(s *Session, roomID string) {
	if err := h.presence.Remove(context.Background(), roomID, s.User.ID); err != nil {
		log.Printf("devserver: presence remove failed: %v", err)
	}
	h.broadcast(roomID, domain.EventUserLeft, domain.PresencePayload{RoomID: roomID, User: s.User}, s.ID)
	log.Printf("devserver: %s left room %s", s.User.ID, roomID)
}

func (h *Hub) sendMessage(s *Session, p domain.SendMessagePayload, ackID string) {
	content := strings.TrimSpace(p.Content)
	if content == "" {
		h.sendAck(s, ackID, false, "message content is empty")
		return
	}

	h.mu.Lock()
	if s.room == "" || s.room != p.RoomID {
		h.mu.Unlock()
		h.sendAck(s, ackID, false, "not joined to room "+p.RoomID)
		return
	}
	room := h.rooms[s.room]
	now := time.Now().UTC()
	author := s.User
	msg := domain.ChatMessage{
		ID:               uuid.NewString(),
		RoomID:           p.RoomID,
		User:             &author,
		Content:          content,
		MessageType:      domain.MessageTypeText,
		ModerationStatus: domain.ModerationApproved,
		RepliedTo:        p.RepliedTo,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	room.history = append(room.history, msg)
	if len(room.history) > historyLimit {
		room.history = room.history[len(room.history)-historyLimit:]
	}
	h.mu.Unlock()

	h.sendAck(s, ackID, true, "")
	h.broadcast(p.RoomID, domain.EventNewMessage, msg, "")

	if h.mirror != nil {
		if err := h.mirror.Publish(context.Background(), msg); err != nil {
			log.Printf("devserver: kafka mirror failed: %v", err)
		}
	}
}

func (h *Hub) typing(s *Session, data json.RawMessage, typing bool) {
	var p domain.RoomPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	h.mu.Lock()
	inRoom := s.room != "" && s.room == p.RoomID
	h.mu.Unlock()
	if !inRoom {
		return
	}
	h.broadcast(p.RoomID, domain.EventUserTyping, domain.TypingPayload{
		RoomID: p.RoomID,
		Typing: typing,
		User:   domain.User{ID: s.User.ID, Nickname: s.User.Nickname},
	}, s.ID)
}

func (h *Hub) deleteMessage(s *Session, p domain.DeleteMessagePayload, ackID string) {
	if !s.User.Role.CanModerate() {
		h.sendAck(s, ackID, false, "permission denied")
		return
	}

	h.mu.Lock()
	if s.room == "" || s.room != p.RoomID {
		h.mu.Unlock()
		h.sendAck(s, ackID, false, "not joined to room "+p.RoomID)
		return
	}
	room := h.rooms[s.room]
	removed := false
	for i, m := range room.history {
		if m.ID == p.MessageID {
			room.history = append(room.history[:i], room.history[i+1:]...)
			removed = true
			break
		}
	}
	h.mu.Unlock()

	if !removed {
		h.sendAck(s, ackID, false, "message not found")
		return
	}

	h.sendAck(s, ackID, true, "")
	notice := systemMessage(p.RoomID, "A message was removed by a moderator")
	h.mu.Lock()
	if room, ok := h.rooms[p.RoomID]; ok {
		room.history = append(room.history, notice)
	}
	h.mu.Unlock()
	// Everyone gets the notice, the deleter included, so all histories agree.
	h.broadcast(p.RoomID, domain.EventNewMessage, notice, "")
	log.Printf("devserver: %s deleted message %s in room %s", s.User.ID, p.MessageID, p.RoomID)

	if h.mirror != nil {
		event := kafka.ModerationEvent{
			RoomID:    p.RoomID,
			MessageID: p.MessageID,
			RemovedBy: s.User.ID,
			Timestamp: time.Now().UTC(),
		}
		if err := h.mirror.Publish(context.Background(), event); err != nil {
			log.Printf("devserver: kafka mirror failed: %v", err)
		}
	}
}

// broadcast delivers an event to every member of a room, optionally
// excluding one session. Writes run concurrently; each session's write is
// internally serialized.
func (h *Hub) broadcast(roomID, eventType string, payload interface{}, excludeID string) {
	env, err := domain.NewEnvelope(eventType, payload)
	if err != nil {
		log.Printf("devserver: encode %s: %v", eventType, err)
		return
	}

	h.mu.Lock()
	room, ok := h.rooms[roomID]
	if !ok {
		h.mu.Unlock()
		return
	}
	members := make([]*Session, 0, len(room.members))
	for _, member := range room.members {
		if member.ID != excludeID {
			members = append(members, member)
		}
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, member := range members {
		wg.Add(1)
		go func(target *Session) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					log.Printf("devserver: recovered from panic broadcasting to %s: %v", target.User.ID, r)
				}
			}()
			if err := target.deliver(env); err != nil {
				log.Printf("devserver: failed to deliver %s to %s: %v", eventType, target.User.ID, err)
			}
		}(member)
	}
	wg.Wait()
}

func (h *Hub) sendAck(s *Session, ackID string, success bool, errMsg string) {
	if ackID == "" {
		return
	}
	env, err := domain.NewEnvelope(domain.EventAck, domain.AckPayload{Success: success, Error: errMsg})
	if err != nil {
		return
	}
	env.AckID = ackID
	if err := s.deliver(env); err != nil {
		log.Printf("devserver: failed to deliver ack to %s: %v", s.User.ID, err)
	}
}

func (h *Hub) sendError(s *Session, msg string) {
	env, err := domain.NewEnvelope(domain.EventError, domain.ErrorPayload{Message: msg})
	if err != nil {
		return
	}
	if err := s.deliver(env); err != nil {
		log.Printf("devserver: failed to deliver error to %s: %v", s.User.ID, err)
	}
}

// RoomCount returns active room membership sizes for the health endpoint.
func (h *Hub) RoomCount() map[string]int {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]int, len(h.rooms))
	for id, room := range h.rooms {
		out[id] = len(room.members)
	}
	return out
}

func systemMessage(roomID, content string) domain.ChatMessage {
	now := time.Now().UTC()
	return domain.ChatMessage{
		ID:               uuid.NewString(),
		RoomID:           roomID,
		Content:          content,
		MessageType:      domain.MessageTypeSystem,
		ModerationStatus: domain.ModerationApproved,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
