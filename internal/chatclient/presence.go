package chatclient

import (
	"sort"
	"sync"
	"time"

	"questchat-ws/internal/domain"
)

// TypingUser is the projection of one entry in the typing set.
type TypingUser struct {
	ID   string
	Name string
}

type typingEntry struct {
	nickname string
	timer    *time.Timer
}

// presenceTracker owns the online-user set and the typing set for the active
// room. Typing entries expire after a quiet period unless refreshed; an
// explicit typing=false removes them immediately.
type presenceTracker struct {
	expiry time.Duration
	notify func() // fired after an expiry removes an entry, outside the lock

	mu     sync.Mutex
	online []domain.User
	typing map[string]*typingEntry
}

func newPresenceTracker(expiry time.Duration, notify func()) *presenceTracker {
	return &presenceTracker{
		expiry: expiry,
		notify: notify,
		typing: make(map[string]*typingEntry),
	}
}

// reset clears both sets and cancels every pending expiry timer. Called on
// room switch and teardown so no stale timer can resurrect a typing entry.
func (t *presenceTracker) reset() {
	t.mu.Lock()
	for _, e := range t.typing {
		e.timer.Stop()
	}
	t.typing = make(map[string]*typingEntry)
	t.online = nil
	t.mu.Unlock()
}

func (t *presenceTracker) seedOnline(users []domain.User) {
	online := make([]domain.User, len(users))
	copy(online, users)
	t.mu.Lock()
	t.online = online
	t.mu.Unlock()
}

// addOnline adds the user unless already present. Reports whether the set
// changed.
func (t *presenceTracker) addOnline(u domain.User) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.online {
		if existing.ID == u.ID {
			return false
		}
	}
	t.online = append(t.online, u)
	return true
}

func (t *presenceTracker) removeOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, existing := range t.online {
		if existing.ID == userID {
			t.online = append(t.online[:i], t.online[i+1:]...)
			return true
		}
	}
	return false
}

// setTyping applies a typing signal. typing=true debounces: the expiry timer
// restarts from now rather than accumulating. typing=false removes the entry
// and cancels its timer.
func (t *presenceTracker) setTyping(u domain.User, typing bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.typing[u.ID]; ok {
		existing.timer.Stop()
		delete(t.typing, u.ID)
	}
	if !typing {
		return
	}

	entry := &typingEntry{nickname: u.Nickname}
	entry.timer = time.AfterFunc(t.expiry, func() {
		t.mu.Lock()
		current, ok := t.typing[u.ID]
		expired := ok && current == entry
		if expired {
			delete(t.typing, u.ID)
		}
		t.mu.Unlock()
		// Identity check above keeps a stale timer from deleting a
		// refreshed entry.
		if expired && t.notify != nil {
			t.notify()
		}
	})
	t.typing[u.ID] = entry
}

func (t *presenceTracker) typingSnapshot() []TypingUser {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TypingUser, 0, len(t.typing))
	for id, e := range t.typing {
		out = append(out, TypingUser{ID: id, Name: e.nickname})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (t *presenceTracker) onlineSnapshot() []domain.User {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.User, len(t.online))
	copy(out, t.online)
	return out
}
