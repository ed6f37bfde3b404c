package devserver

import (
	"context"
	"sort"
	"sync"

	"questchat-ws/internal/domain"
)

// Session is one connected client, regardless of transport. write delivers
// an envelope over whatever carries the session (websocket frame or poll
// queue) and must be safe for concurrent use.
type Session struct {
	ID    string
	User  domain.User
	write func(domain.Envelope) error

	room string // guarded by Hub.mu
}

func (s *Session) deliver(env domain.Envelope) error {
	return s.write(env)
}

// PresenceStore tracks which users are in which room. The gateway uses the
// in-memory store by default and Redis when configured.
type PresenceStore interface {
	Add(ctx context.Context, roomID string, user domain.User) error
	Remove(ctx context.Context, roomID, userID string) error
	List(ctx context.Context, roomID string) ([]domain.User, error)
	Close() error
}

type memoryPresence struct {
	mu    sync.Mutex
	rooms map[string]map[string]domain.User
}

func NewMemoryPresence() PresenceStore {
	return &memoryPresence{rooms: make(map[string]map[string]domain.User)}
}

func (m *memoryPresence) Add(_ context.Context, roomID string, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		room = make(map[string]domain.User)
		m.rooms[roomID] = room
	}
	room[user.ID] = user
	return nil
}

func (m *memoryPresence) Remove(_ context.Context, roomID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if room, ok := m.rooms[roomID]; ok {
		delete(room, userID)
		if len(room) == 0 {
			delete(m.rooms, roomID)
		}
	}
	return nil
}

func (m *memoryPresence) List(_ context.Context, roomID string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room := m.rooms[roomID]
	out := make([]domain.User, 0, len(room))
	for _, u := range room {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memoryPresence) Close() error {
	return nil
}
