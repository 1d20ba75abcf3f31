package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dtw-backend/internal/models"
)

// ChatRepo stores session history in chat_messages; the BIGSERIAL id gives the
// insertion order.
type ChatRepo struct {
	pool *pgxpool.Pool
}

func NewChatRepo(pool *pgxpool.Pool) *ChatRepo {
	return &ChatRepo{pool: pool}
}

func (r *ChatRepo) GetHistory(ctx context.Context, key models.SessionKey) ([]models.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT role, content
		FROM chat_messages
		WHERE user_id = $1 AND session_id = $2
		ORDER BY id ASC`, key.UserID, key.SessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := []models.ChatMessage{}
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.Role, &m.Content); err != nil {
			return nil, err
		}
		history = append(history, m)
	}
	return history, rows.Err()
}

// AppendMessages inserts all messages in one transaction so a turn is never half-written.
func (r *ChatRepo) AppendMessages(ctx context.Context, key models.SessionKey, msgs ...models.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, m := range msgs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat_messages (user_id, session_id, role, content)
			VALUES ($1, $2, $3, $4)`, key.UserID, key.SessionID, m.Role, m.Content); err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *ChatRepo) GetProfile(ctx context.Context, key models.SessionKey) (models.Profile, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT profile FROM chat_profiles
		WHERE user_id = $1 AND session_id = $2`, key.UserID, key.SessionID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Profile{}, nil
	}
	if err != nil {
		return nil, err
	}

	profile := models.Profile{}
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return profile, nil
}

func (r *ChatRepo) SaveProfile(ctx context.Context, key models.SessionKey, profile models.Profile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO chat_profiles (user_id, session_id, profile, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, session_id)
		DO UPDATE SET profile = EXCLUDED.profile, updated_at = NOW()`,
		key.UserID, key.SessionID, raw)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}
