package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"questchat-ws/internal/domain"
)

func roomKey(roomID string) string {
	return fmt.Sprintf("room:%s:users", roomID)
}

func (p *PresenceStore) Add(ctx context.Context, roomID string, user domain.User) error {
	userJSON, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return p.client.HSet(ctx, roomKey(roomID), user.ID, userJSON).Err()
}

func (p *PresenceStore) Remove(ctx context.Context, roomID, userID string) error {
	return p.client.HDel(ctx, roomKey(roomID), userID).Err()
}

func (p *PresenceStore) List(ctx context.Context, roomID string) ([]domain.User, error) {
	entries, err := p.client.HGetAll(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(entries))
	for _, raw := range entries {
		var u domain.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (p *PresenceStore) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *PresenceStore) Close() error {
	return p.client.Close()
}
