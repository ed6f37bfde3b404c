package redis

import (
	"fmt"

	"github.com/go-redis/redis/v8"
)

type PresenceStore struct {
	client *redis.Client
}

func NewPresenceStore(host, port, password string) *PresenceStore {
	addr := fmt.Sprintf("%s:%s", host, port)
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	return &PresenceStore{client: client}
}
