package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventCheckinRecorded = "checkin_recorded"
	EventChatReply       = "chat_reply"
)

// WSMessage is the envelope pushed to websocket clients.
type WSMessage struct {
	Type    string      `json:"type"`
	UserID  uuid.UUID   `json:"user_id"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

type CheckinEvent struct {
	CheckinID uuid.UUID `json:"checkin_id"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatReplyEvent struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
	Turns     int    `json:"turns"`
}
