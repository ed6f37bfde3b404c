package chatclient

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"questchat-ws/internal/domain"

	"github.com/google/uuid"
)

const tempIDPrefix = "temp-"

// tempMessageID generates the temporary identifier for an optimistic
// message. Unique within a session; the real id arrives with the server's
// canonical push.
func tempMessageID() string {
	return fmt.Sprintf("%s%d-%s", tempIDPrefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// IsTemporaryID reports whether id belongs to a not-yet-confirmed optimistic
// message.
func IsTemporaryID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}

// messageStore holds the ordered message list for the active room. Messages
// stay in insertion order; the gateway's push order is authoritative and is
// never re-sorted client-side.
type messageStore struct {
	mu    sync.Mutex
	items []domain.ChatMessage
}

func newMessageStore() *messageStore {
	return &messageStore{}
}

func (s *messageStore) reset() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// seed replaces the whole list with the history delivered on room join.
func (s *messageStore) seed(history []domain.ChatMessage) {
	items := make([]domain.ChatMessage, len(history))
	copy(items, history)
	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

func (s *messageStore) append(msg domain.ChatMessage) {
	s.mu.Lock()
	s.items = append(s.items, msg)
	s.mu.Unlock()
}

// remove deletes the message with the given id. Used for optimistic rollback
// and acknowledged admin deletes.
func (s *messageStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.items {
		if m.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// apply reconciles a server-pushed message into the list. Redelivered ids
// are ignored. A canonical echo of the actor's own send replaces the oldest
// still-optimistic entry with the same author, content and reply target,
// keeping its position. Everything else appends. Reports whether the list
// changed.
func (s *messageStore) apply(msg domain.ChatMessage, selfID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.items {
		if m.ID == msg.ID {
			return false
		}
	}

	if selfID != "" && msg.AuthorID() == selfID {
		for i, m := range s.items {
			if m.IsOptimistic && m.AuthorID() == selfID &&
				m.Content == msg.Content && m.RepliedTo == msg.RepliedTo {
				msg.IsOptimistic = false
				s.items[i] = msg
				return true
			}
		}
	}

	s.items = append(s.items, msg)
	return true
}

func (s *messageStore) snapshot() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ChatMessage, len(s.items))
	copy(out, s.items)
	return out
}

func (s *messageStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
