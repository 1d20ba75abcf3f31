package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"dtw-backend/internal/models"
)

type memorySession struct {
	history []models.ChatMessage
	profile models.Profile
}

// MemoryStore keeps users, check-ins and chat sessions for the lifetime of the
// process. It satisfies the same interfaces as the Postgres repositories.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[uuid.UUID]*models.User
	checkins map[uuid.UUID][]*models.CheckIn
	sessions map[models.SessionKey]*memorySession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[uuid.UUID]*models.User),
		checkins: make(map[uuid.UUID][]*models.CheckIn),
		sessions: make(map[models.SessionKey]*memorySession),
	}
}

// ─── Users ───

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return ErrAlreadyExists
	}
	u := *user
	s.users[user.ID] = &u
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ─── Check-ins ───

func (s *MemoryStore) CreateCheckin(ctx context.Context, c *models.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[c.UserID]; !ok {
		return ErrNotFound
	}
	cp := *c
	s.checkins[c.UserID] = append(s.checkins[c.UserID], &cp)
	return nil
}

// ListCheckins returns the newest check-ins first, at most limit (0 = all).
func (s *MemoryStore) ListCheckins(ctx context.Context, userID uuid.UUID, limit int) ([]*models.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.checkins[userID]
	out := make([]*models.CheckIn, 0, len(src))
	for _, c := range src {
		cp := *c
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ─── Chat sessions ───

func (s *MemoryStore) GetHistory(ctx context.Context, key models.SessionKey) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[key]
	if !ok {
		return []models.ChatMessage{}, nil
	}
	out := make([]models.ChatMessage, len(sess.history))
	copy(out, sess.history)
	return out, nil
}

func (s *MemoryStore) AppendMessages(ctx context.Context, key models.SessionKey, msgs ...models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session(key)
	sess.history = append(sess.history, msgs...)
	return nil
}

func (s *MemoryStore) GetProfile(ctx context.Context, key models.SessionKey) (models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := models.Profile{}
	if sess, ok := s.sessions[key]; ok {
		for k, v := range sess.profile {
			out[k] = v
		}
	}
	return out, nil
}

func (s *MemoryStore) SaveProfile(ctx context.Context, key models.SessionKey, profile models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := make(models.Profile, len(profile))
	for k, v := range profile {
		cp[k] = v
	}
	s.session(key).profile = cp
	return nil
}

// session must be called with s.mu held for writing.
func (s *MemoryStore) session(key models.SessionKey) *memorySession {
	sess, ok := s.sessions[key]
	if !ok {
		sess = &memorySession{profile: models.Profile{}}
		s.sessions[key] = sess
	}
	return sess
}
