package devserver

import (
	"log"
	"sync"

	"questchat-ws/internal/config"
	"questchat-ws/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
)

// Server is the local gateway stub: the websocket endpoint plus the
// long-poll REST surface, both speaking the same envelope contract.
type Server struct {
	config *config.Config
	hub    *Hub
	polls  *pollRegistry
}

func NewServer(cfg *config.Config, hub *Hub) *Server {
	return &Server{
		config: cfg,
		hub:    hub,
		polls:  newPollRegistry(),
	}
}

func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName: "QuestChat Moderation Gateway (dev)",
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} ${latency}\n",
	}))

	corsConfig := cors.Config{
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization,X-Requested-With",
		AllowCredentials: s.config.AllowCredentials,
		MaxAge:           86400,
	}
	if s.config.IsProduction() {
		corsConfig.AllowOrigins = s.config.GetCORSOrigins()
	} else {
		corsConfig.AllowOrigins = "*"
		corsConfig.AllowCredentials = false // Never allow credentials with wildcard origin
	}
	app.Use(cors.New(corsConfig))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":      "ok",
			"message":     "QuestChat dev gateway is running",
			"port":        s.config.Port,
			"environment": s.config.Environment,
			"rooms":       s.hub.RoomCount(),
		})
	})

	// Long-poll transport surface
	app.Post("/poll", s.handlePollConnect)
	app.Get("/poll/:session/events", s.handlePollEvents)
	app.Post("/poll/:session/emit", s.handlePollEmit)
	app.Delete("/poll/:session", s.handlePollClose)

	// WebSocket transport surface
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		s.handleWebSocket(c)
	}))

	log.Printf("devserver: gateway starting on port %s", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// validToken accepts any non-empty token unless DEV_TOKEN pins an expected
// value.
func (s *Server) validToken(token string) bool {
	if s.config.DevToken != "" {
		return token == s.config.DevToken
	}
	return token != ""
}

func (s *Server) handleWebSocket(c *websocket.Conn) {
	defer c.Close()

	token := c.Query("token")
	user := domain.User{
		ID:       c.Query("user_id"),
		Nickname: c.Query("nickname"),
		Role:     domain.Role(c.Query("role", string(domain.RoleUser))),
	}

	writeMu := &sync.Mutex{}
	write := func(env domain.Envelope) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(env)
	}

	if !s.validToken(token) || user.ID == "" {
		log.Printf("devserver: websocket handshake rejected for %q", user.ID)
		env, err := domain.NewEnvelope(domain.EventError, domain.ErrorPayload{
			Message: "authentication failed: invalid token",
		})
		if err == nil {
			_ = write(env)
		}
		return
	}

	session := s.hub.Register(user, write)
	defer s.hub.Unregister(session)

	for {
		var env domain.Envelope
		if err := c.ReadJSON(&env); err != nil {
			log.Printf("devserver: websocket read error for %s: %v", user.ID, err)
			return
		}
		s.hub.HandleEnvelope(session, env)
	}
}
