package config

import (
	"os"
	"strings"
)

type Config struct {
	// Dev gateway
	Port             string
	AllowedOrigins   []string
	AllowCredentials bool
	Environment      string
	DevToken         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	KafkaBrokers     []string

	// Chat client
	ServerURL string
	Token     string
	UserID    string
	Nickname  string
	Role      string
	Room      string
}

func LoadConfig() *Config {
	// Get allowed origins from environment variable
	allowedOrigins := []string{"*"} // Default to allow all origins
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		allowedOrigins = strings.Split(origins, ",")
		for i, origin := range allowedOrigins {
			allowedOrigins[i] = strings.TrimSpace(origin)
		}
	}

	// Kafka mirror stays off unless brokers are configured
	var kafkaBrokers []string
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		kafkaBrokers = strings.Split(brokers, ",")
		for i, broker := range kafkaBrokers {
			kafkaBrokers[i] = strings.TrimSpace(broker)
		}
	}

	return &Config{
		Port:             getEnv("PORT", "8000"),
		AllowedOrigins:   allowedOrigins,
		AllowCredentials: getEnv("ALLOW_CREDENTIALS", "false") == "true",
		Environment:      getEnv("ENVIRONMENT", "development"),
		DevToken:         getEnv("DEV_TOKEN", ""),
		RedisHost:        getEnv("REDIS_HOST", ""),
		RedisPort:        getEnv("REDIS_PORT", "6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:     kafkaBrokers,

		ServerURL: getEnv("CHAT_SERVER_URL", "http://localhost:8000"),
		Token:     getEnv("CHAT_TOKEN", ""),
		UserID:    getEnv("CHAT_USER_ID", ""),
		Nickname:  getEnv("CHAT_NICKNAME", ""),
		Role:      getEnv("CHAT_ROLE", "user"),
		Room:      getEnv("CHAT_ROOM", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetCORSOrigins returns CORS origins as a comma-separated string
func (c *Config) GetCORSOrigins() string {
	if c.Environment == "production" && len(c.AllowedOrigins) > 0 && c.AllowedOrigins[0] != "*" {
		return strings.Join(c.AllowedOrigins, ",")
	}
	return "*"
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
