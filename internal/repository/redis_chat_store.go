package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dtw-backend/internal/models"
)

// RedisChatStore keeps each session's history in a Redis list (RPUSH preserves
// insertion order) and its profile in a JSON string. A zero ttl means keys never expire.
type RedisChatStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisChatStore(client *redis.Client, ttl time.Duration) *RedisChatStore {
	return &RedisChatStore{client: client, ttl: ttl}
}

func historyKey(key models.SessionKey) string {
	return fmt.Sprintf("chat:%s:%s:history", key.UserID.String(), key.SessionID)
}

func profileKey(key models.SessionKey) string {
	return fmt.Sprintf("chat:%s:%s:profile", key.UserID.String(), key.SessionID)
}

func (s *RedisChatStore) GetHistory(ctx context.Context, key models.SessionKey) ([]models.ChatMessage, error) {
	items, err := s.client.LRange(ctx, historyKey(key), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	history := make([]models.ChatMessage, 0, len(items))
	for _, item := range items {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to decode chat message: %w", err)
		}
		history = append(history, m)
	}
	return history, nil
}

func (s *RedisChatStore) AppendMessages(ctx context.Context, key models.SessionKey, msgs ...models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values = append(values, data)
	}

	k := historyKey(key)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, k, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
		pipe.Expire(ctx, profileKey(key), s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisChatStore) GetProfile(ctx context.Context, key models.SessionKey) (models.Profile, error) {
	data, err := s.client.Get(ctx, profileKey(key)).Result()
	if err == redis.Nil {
		return models.Profile{}, nil
	}
	if err != nil {
		return nil, err
	}

	profile := models.Profile{}
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return profile, nil
}

func (s *RedisChatStore) SaveProfile(ctx context.Context, key models.SessionKey, profile models.Profile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, profileKey(key), data, s.ttl).Err()
}
