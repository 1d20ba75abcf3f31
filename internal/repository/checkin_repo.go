package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"dtw-backend/internal/models"
)

type CheckinRepo struct {
	pool *pgxpool.Pool
}

func NewCheckinRepo(pool *pgxpool.Pool) *CheckinRepo {
	return &CheckinRepo{pool: pool}
}

func (r *CheckinRepo) CreateCheckin(ctx context.Context, c *models.CheckIn) error {
	query := `
		INSERT INTO check_ins (id, user_id, note, event_time)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, c.ID, c.UserID, c.Note, c.Timestamp).Scan(&c.CreatedAt)
	if isForeignKeyViolation(err) {
		return ErrNotFound
	}
	return err
}

func (r *CheckinRepo) ListCheckins(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CheckIn, error) {
	query := `
		SELECT id, user_id, note, event_time, created_at
		FROM check_ins
		WHERE user_id = $1
		ORDER BY event_time DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.CheckIn{}
	for rows.Next() {
		c := &models.CheckIn{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Note, &c.Timestamp, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
