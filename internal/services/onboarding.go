package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dtw-backend/internal/logger"
	"dtw-backend/internal/models"
	"dtw-backend/internal/repository"
)

type userStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type OnboardingService struct {
	users userStore
	log   *zap.Logger
	now   func() time.Time
}

func NewOnboardingService(users userStore, log *zap.Logger) *OnboardingService {
	if log == nil {
		log = zap.NewNop()
	}
	return &OnboardingService{users: users, log: log, now: time.Now}
}

func (s *OnboardingService) Onboard(ctx context.Context, req models.OnboardingRequest) (*models.OnboardingResponse, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)

	if fields := fieldErrors(req); len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	user := &models.User{
		ID:        uuid.New(),
		Name:      req.Name,
		Email:     req.Email,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.FromContext(ctx, s.log).Info("user onboarded", zap.String("user_id", user.ID.String()))

	return &models.OnboardingResponse{
		UserID:  user.ID,
		Message: "Welcome " + user.Name + "!",
	}, nil
}

// requireUser maps a missing user to NotFoundError.
func requireUser(ctx context.Context, users userStore, id uuid.UUID) (*models.User, error) {
	user, err := users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}
