package devserver

import (
	"sync"
	"time"

	"questchat-ws/internal/domain"

	"github.com/gofiber/fiber/v2"
)

// pollWait is how long an events request is held open before returning an
// empty batch.
const pollWait = 25 * time.Second

type pollSession struct {
	session *Session
	queue   chan domain.Envelope
}

type pollRegistry struct {
	mu       sync.Mutex
	sessions map[string]*pollSession
}

func newPollRegistry() *pollRegistry {
	return &pollRegistry{sessions: make(map[string]*pollSession)}
}

func (r *pollRegistry) add(ps *pollSession) {
	r.mu.Lock()
	r.sessions[ps.session.ID] = ps
	r.mu.Unlock()
}

func (r *pollRegistry) get(id string) *pollSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *pollRegistry) remove(id string) *pollSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps := r.sessions[id]
	delete(r.sessions, id)
	return ps
}

func (s *Server) handlePollConnect(c *fiber.Ctx) error {
	var creds struct {
		Token    string `json:"token"`
		UserID   string `json:"user_id"`
		Nickname string `json:"nickname"`
		Role     string `json:"role"`
	}
	if err := c.BodyParser(&creds); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(domain.ErrorPayload{Message: "invalid request body"})
	}
	if !s.validToken(creds.Token) || creds.UserID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(domain.ErrorPayload{
			Message: "authentication failed: invalid token",
		})
	}

	role := domain.Role(creds.Role)
	if role == "" {
		role = domain.RoleUser
	}
	ps := &pollSession{queue: make(chan domain.Envelope, 64)}
	user := domain.User{ID: creds.UserID, Nickname: creds.Nickname, Role: role}
	ps.session = s.hub.Register(user, func(env domain.Envelope) error {
		select {
		case ps.queue <- env:
			return nil
		default:
			return errPollQueueFull
		}
	})
	s.polls.add(ps)

	return c.JSON(fiber.Map{"session_id": ps.session.ID})
}

var errPollQueueFull = fiber.NewError(fiber.StatusServiceUnavailable, "poll queue full")

func (s *Server) handlePollEvents(c *fiber.Ctx) error {
	ps := s.polls.get(c.Params("session"))
	if ps == nil {
		return c.Status(fiber.StatusNotFound).JSON(domain.ErrorPayload{Message: "unknown session"})
	}

	batch := make([]domain.Envelope, 0, 8)
	timer := time.NewTimer(pollWait)
	defer timer.Stop()

	select {
	case env := <-ps.queue:
		batch = append(batch, env)
		// Drain whatever else is already buffered.
		for {
			select {
			case extra := <-ps.queue:
				batch = append(batch, extra)
			default:
				return c.JSON(batch)
			}
		}
	case <-timer.C:
		return c.JSON(batch)
	}
}

func (s *Server) handlePollEmit(c *fiber.Ctx) error {
	ps := s.polls.get(c.Params("session"))
	if ps == nil {
		return c.Status(fiber.StatusNotFound).JSON(domain.ErrorPayload{Message: "unknown session"})
	}

	var env domain.Envelope
	if err := c.BodyParser(&env); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(domain.ErrorPayload{Message: "invalid envelope"})
	}
	s.hub.HandleEnvelope(ps.session, env)
	return c.JSON(fiber.Map{"success": true})
}

func (s *Server) handlePollClose(c *fiber.Ctx) error {
	ps := s.polls.remove(c.Params("session"))
	if ps == nil {
		return c.Status(fiber.StatusNotFound).JSON(domain.ErrorPayload{Message: "unknown session"})
	}
	s.hub.Unregister(ps.session)
	return c.JSON(fiber.Map{"success": true})
}
