package events

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"dtw-backend/internal/models"
)

// Publisher fans a per-user event out to whoever is listening.
type Publisher interface {
	Publish(ctx context.Context, msg models.WSMessage) error
}

// Channel is the Redis pub/sub channel carrying one user's events.
func Channel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, Channel(msg.UserID), data).Err()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.WSMessage) error { return nil }
