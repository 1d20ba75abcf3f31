package models

import (
	"time"

	"github.com/google/uuid"
)

type CheckIn struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Note      *string   `json:"note"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// CheckinRequest keeps user_id and timestamp as raw strings so malformed values
// surface as field-level validation errors rather than a decode failure.
type CheckinRequest struct {
	UserID    string  `json:"user_id" validate:"required"`
	Note      *string `json:"note"`
	Timestamp *string `json:"timestamp"`
}

type CheckinResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type CheckinListResponse struct {
	CheckIns []*CheckIn `json:"check_ins"`
}
