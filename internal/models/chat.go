package models

import "github.com/google/uuid"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// SessionKey identifies one conversation thread of one user.
type SessionKey struct {
	UserID    uuid.UUID
	SessionID string
}

func (k SessionKey) String() string {
	return k.UserID.String() + ":" + k.SessionID
}

// Profile holds the onboarding fields collected so far, keyed by field name.
type Profile map[string]any

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	UserID    string `json:"user_id" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
	Message   string `json:"message" validate:"required"`
	Model     string `json:"model"`
}

// ChatResponse is the reply from the AI chat.
type ChatResponse struct {
	Reply   string        `json:"reply"`
	History []ChatMessage `json:"history"`
	Profile Profile       `json:"profile"`
}

type ChatHistoryResponse struct {
	History []ChatMessage `json:"history"`
	Profile Profile       `json:"profile"`
}

// NormalizeRole maps anything outside the known roles to "user".
func NormalizeRole(role string) string {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return role
	default:
		return RoleUser
	}
}
