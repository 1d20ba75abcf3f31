package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dtw-backend/internal/events"
	"dtw-backend/internal/logger"
	"dtw-backend/internal/models"
	"dtw-backend/internal/repository"
)

const (
	defaultCheckinListLimit = 50
	maxCheckinListLimit     = 500
)

type checkinStore interface {
	CreateCheckin(ctx context.Context, c *models.CheckIn) error
	ListCheckins(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CheckIn, error)
}

type CheckinService struct {
	users     userStore
	checkins  checkinStore
	publisher events.Publisher
	log       *zap.Logger
	now       func() time.Time
}

func NewCheckinService(users userStore, checkins checkinStore, publisher events.Publisher, log *zap.Logger) *CheckinService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckinService{
		users:     users,
		checkins:  checkins,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

func (s *CheckinService) Record(ctx context.Context, req models.CheckinRequest) (*models.CheckinResponse, error) {
	fields := fieldErrors(req)

	userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
	if err != nil && fields["user_id"] == "" {
		fields["user_id"] = "Invalid user id"
	}

	eventTime := s.now().UTC()
	if req.Timestamp != nil {
		ts, err := ParseTimestamp(*req.Timestamp)
		if err != nil {
			fields["timestamp"] = "Invalid timestamp, expected ISO 8601 date-time"
		} else {
			eventTime = ts
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}

	checkin := &models.CheckIn{
		ID:        uuid.New(),
		UserID:    userID,
		Note:      req.Note,
		Timestamp: eventTime,
		CreatedAt: s.now().UTC(),
	}
	if err := s.checkins.CreateCheckin(ctx, checkin); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, fmt.Errorf("create checkin: %w", err)
	}

	log := logger.FromContext(ctx, s.log)
	log.Info("check-in recorded",
		zap.String("user_id", userID.String()),
		zap.Time("timestamp", eventTime),
	)

	msg := models.WSMessage{
		Type:    models.EventCheckinRecorded,
		UserID:  userID,
		At:      checkin.CreatedAt,
		Payload: models.CheckinEvent{CheckinID: checkin.ID, Timestamp: eventTime},
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		log.Warn("failed to publish check-in event", zap.Error(err))
	}

	return &models.CheckinResponse{Status: "ok", Message: "Check-in recorded"}, nil
}

// List returns a user's check-ins, newest first. limit <= 0 selects the default.
func (s *CheckinService) List(ctx context.Context, rawUserID string, limit int) ([]*models.CheckIn, error) {
	userID, err := uuid.Parse(strings.TrimSpace(rawUserID))
	if err != nil {
		return nil, &ValidationError{Fields: map[string]string{"user_id": "Invalid user id"}}
	}
	if limit <= 0 {
		limit = defaultCheckinListLimit
	}
	if limit > maxCheckinListLimit {
		limit = maxCheckinListLimit
	}

	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return nil, err
	}

	list, err := s.checkins.ListCheckins(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkins: %w", err)
	}
	if list == nil {
		list = []*models.CheckIn{}
	}
	return list, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 or the common naive ISO 8601 forms. Values
// without an offset are taken as UTC. The result is always in UTC.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
}
