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
	"dtw-backend/internal/llm"
	"dtw-backend/internal/logger"
	"dtw-backend/internal/models"
)

const chatTemperature = 0.2

type chatStore interface {
	GetHistory(ctx context.Context, key models.SessionKey) ([]models.ChatMessage, error)
	AppendMessages(ctx context.Context, key models.SessionKey, msgs ...models.ChatMessage) error
	GetProfile(ctx context.Context, key models.SessionKey) (models.Profile, error)
	SaveProfile(ctx context.Context, key models.SessionKey, profile models.Profile) error
}

type profileExtractor interface {
	Extract(ctx context.Context, userInput string) (models.Profile, error)
}

type ChatService struct {
	users        userStore
	chats        chatStore
	llm          llm.Client
	profiles     profileExtractor
	publisher    events.Publisher
	defaultModel string
	locks        *keyedMutex
	log          *zap.Logger
	now          func() time.Time
}

// NewChatService wires the onboarding chat. A nil profiles disables profile extraction.
func NewChatService(users userStore, chats chatStore, client llm.Client, profiles profileExtractor, publisher events.Publisher, defaultModel string, log *zap.Logger) *ChatService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{
		users:        users,
		chats:        chats,
		llm:          client,
		profiles:     profiles,
		publisher:    publisher,
		defaultModel: defaultModel,
		locks:        newKeyedMutex(),
		log:          log,
		now:          time.Now,
	}
}

func (s *ChatService) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	key, err := s.sessionKey(ctx, req.UserID, req.SessionID, &req)
	if err != nil {
		return nil, err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.defaultModel
	}

	log := logger.FromContext(ctx, s.log).With(
		zap.String("user_id", key.UserID.String()),
		zap.String("session_id", key.SessionID),
		zap.String("model", model),
	)

	// Turns on one session run one at a time so the history stays alternating.
	unlock := s.locks.Lock(key.String())
	defer unlock()

	history, err := s.chats.GetHistory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: models.RoleSystem, Content: BuildSystemPrompt(s.now())})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: models.NormalizeRole(m.Role), Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: models.RoleUser, Content: req.Message})

	start := s.now()
	reply, err := s.llm.Complete(ctx, llm.Request{
		Model:       model,
		Messages:    msgs,
		Temperature: chatTemperature,
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = llm.ErrEmptyReply
	}
	if err != nil {
		log.Warn("llm call failed", zap.Error(err), zap.Duration("elapsed", s.now().Sub(start)))
		return nil, &UpstreamError{Message: "Language model unavailable", Err: err}
	}

	// Persist the turn even if the client has disconnected.
	persistCtx := context.WithoutCancel(ctx)

	turn := []models.ChatMessage{
		{Role: models.RoleUser, Content: req.Message},
		{Role: models.RoleAssistant, Content: reply},
	}
	if err := s.chats.AppendMessages(persistCtx, key, turn...); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	history = append(history, turn...)

	profile := s.updateProfile(persistCtx, log, key, req.Message)

	log.Info("chat turn completed",
		zap.Int("history_len", len(history)),
		zap.Duration("elapsed", s.now().Sub(start)),
	)

	event := models.WSMessage{
		Type:   models.EventChatReply,
		UserID: key.UserID,
		At:     s.now().UTC(),
		Payload: models.ChatReplyEvent{
			SessionID: key.SessionID,
			Reply:     reply,
			Turns:     len(history) / 2,
		},
	}
	if err := s.publisher.Publish(persistCtx, event); err != nil {
		log.Warn("failed to publish chat event", zap.Error(err))
	}

	return &models.ChatResponse{
		Reply:   reply,
		History: normalizeHistory(history),
		Profile: profile,
	}, nil
}

// History returns the stored conversation and profile for one session.
func (s *ChatService) History(ctx context.Context, rawUserID, sessionID string) (*models.ChatHistoryResponse, error) {
	key, err := s.sessionKey(ctx, rawUserID, sessionID, nil)
	if err != nil {
		return nil, err
	}

	history, err := s.chats.GetHistory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	profile, err := s.chats.GetProfile(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	return &models.ChatHistoryResponse{
		History: normalizeHistory(history),
		Profile: profile,
	}, nil
}

// sessionKey validates the identifying fields (and req when given) and
// confirms the user exists.
func (s *ChatService) sessionKey(ctx context.Context, rawUserID, sessionID string, req *models.ChatRequest) (models.SessionKey, error) {
	var fields map[string]string
	if req != nil {
		fields = fieldErrors(*req)
		if _, bad := fields["message"]; !bad && strings.TrimSpace(req.Message) == "" {
			fields["message"] = "message is required"
		}
	} else {
		fields = make(map[string]string)
	}

	userID, err := uuid.Parse(strings.TrimSpace(rawUserID))
	if err != nil && fields["user_id"] == "" {
		fields["user_id"] = "Invalid user id"
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" && fields["session_id"] == "" {
		fields["session_id"] = "session_id is required"
	}

	if len(fields) > 0 {
		return models.SessionKey{}, &ValidationError{Fields: fields}
	}

	if _, err := requireUser(ctx, s.users, userID); err != nil {
		return models.SessionKey{}, err
	}
	return models.SessionKey{UserID: userID, SessionID: sessionID}, nil
}

// updateProfile merges whatever the latest message states into the session
// profile. Failures are logged and the previous profile is returned.
func (s *ChatService) updateProfile(ctx context.Context, log *zap.Logger, key models.SessionKey, userInput string) models.Profile {
	current, err := s.chats.GetProfile(ctx, key)
	if err != nil {
		log.Warn("failed to load profile", zap.Error(err))
		return models.Profile{}
	}
	if s.profiles == nil {
		return current
	}

	updates, err := s.profiles.Extract(ctx, userInput)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Warn("profile extraction failed", zap.Error(err))
		}
		return current
	}
	if len(updates) == 0 {
		return current
	}

	merged, ok := MergeProfile(current, updates)
	if !ok {
		log.Debug("profile update rejected", zap.Any("updates", updates))
		return current
	}
	if err := s.chats.SaveProfile(ctx, key, merged); err != nil {
		log.Warn("failed to save profile", zap.Error(err))
		return current
	}
	return merged
}

func normalizeHistory(history []models.ChatMessage) []models.ChatMessage {
	out := make([]models.ChatMessage, len(history))
	for i, m := range history {
		out[i] = models.ChatMessage{Role: models.NormalizeRole(m.Role), Content: m.Content}
	}
	return out
}
