package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"questchat-ws/internal/config"
	"questchat-ws/internal/devserver"
	"questchat-ws/internal/infrastructure/kafka"
	"questchat-ws/internal/infrastructure/redis"

	"github.com/joho/godotenv"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Application recovered from panic: %v", r)
			os.Exit(1)
		}
	}()

	_ = godotenv.Load()

	cfg := config.LoadConfig()

	log.Printf("Starting QuestChat Dev Gateway")
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Port: %s", cfg.Port)
	log.Printf("CORS Origins: %s", cfg.GetCORSOrigins())

	// Presence storage: Redis when configured, in-memory otherwise
	var presence devserver.PresenceStore
	if cfg.RedisHost != "" {
		store := redis.NewPresenceStore(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err := store.Ping(context.Background()); err != nil {
			log.Printf("Warning: Redis connection failed, falling back to memory presence: %v", err)
			presence = devserver.NewMemoryPresence()
		} else {
			log.Printf("Redis presence store connected at %s:%s", cfg.RedisHost, cfg.RedisPort)
			presence = store
		}
	} else {
		presence = devserver.NewMemoryPresence()
	}

	// Moderation mirror: only when brokers are configured
	var mirror devserver.EventMirror
	var producer *kafka.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = kafka.NewProducer(cfg.KafkaBrokers)
		mirror = producer
		log.Printf("Kafka moderation mirror enabled: %v", cfg.KafkaBrokers)
	}

	hub := devserver.NewHub(presence, mirror)
	server := devserver.NewServer(cfg, hub)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutting down...")
		if producer != nil {
			if err := producer.Close(); err != nil {
				log.Printf("Error closing Kafka producer: %v", err)
			}
		}
		if err := presence.Close(); err != nil {
			log.Printf("Error closing presence store: %v", err)
		}
		os.Exit(0)
	}()

	log.Fatal(server.Start())
}
