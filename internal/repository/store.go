package repository

import (
	"context"

	"github.com/google/uuid"

	"dtw-backend/internal/models"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type CheckinStore interface {
	CreateCheckin(ctx context.Context, c *models.CheckIn) error
	ListCheckins(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CheckIn, error)
}

// ChatStore persists per-session history and profile. Appends are ordered.
type ChatStore interface {
	GetHistory(ctx context.Context, key models.SessionKey) ([]models.ChatMessage, error)
	AppendMessages(ctx context.Context, key models.SessionKey, msgs ...models.ChatMessage) error
	GetProfile(ctx context.Context, key models.SessionKey) (models.Profile, error)
	SaveProfile(ctx context.Context, key models.SessionKey, profile models.Profile) error
}

var (
	_ UserStore    = (*MemoryStore)(nil)
	_ CheckinStore = (*MemoryStore)(nil)
	_ ChatStore    = (*MemoryStore)(nil)

	_ UserStore    = (*UserRepo)(nil)
	_ CheckinStore = (*CheckinRepo)(nil)
	_ ChatStore    = (*ChatRepo)(nil)
	_ ChatStore    = (*RedisChatStore)(nil)
)
