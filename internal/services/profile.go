package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"dtw-backend/internal/llm"
	"dtw-backend/internal/models"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindDate
	kindClock
)

// profileFields lists every key the onboarding chat may record, in prompt order.
var profileFields = []struct {
	name string
	kind fieldKind
}{
	{"age", kindInt},
	{"date_of_birth", kindDate},
	{"gender_or_sex", kindString},
	{"height_cm", kindFloat},
	{"weight_kg", kindFloat},
	{"sleep_bedtime", kindClock},
	{"sleep_wake_time", kindClock},
	{"workout_type", kindString},
	{"workout_days_per_week", kindInt},
	{"physical_activity_profile", kindString},
	{"substance_alcohol_per_week", kindFloat},
	{"substance_tobacco_per_day", kindFloat},
	{"substance_caffeine_mg_per_day", kindFloat},
	{"coping_strategies", kindString},
	{"preferred_checkin_time", kindClock},
	{"notification_style", kindString},
	{"married_status", kindString},
	{"social_support", kindBool},
	{"target_sleep_hours", kindFloat},
	{"voice_or_chat_preference", kindString},
}

var profileKinds = func() map[string]fieldKind {
	m := make(map[string]fieldKind, len(profileFields))
	for _, f := range profileFields {
		m[f.name] = f.kind
	}
	return m
}()

func profileFieldNames() []string {
	names := make([]string, len(profileFields))
	for i, f := range profileFields {
		names[i] = f.name
	}
	return names
}

// ProfileExtractor asks the model which profile fields a single user message states.
type ProfileExtractor struct {
	client llm.Client
	model  string
}

func NewProfileExtractor(client llm.Client, model string) *ProfileExtractor {
	return &ProfileExtractor{client: client, model: model}
}

func extractionPrompt() string {
	return "Extract only the fields explicitly stated in the user's message. " +
		"Respond as a minimal JSON object with a subset of these keys: " +
		strings.Join(profileFieldNames(), ", ") +
		". Omit any field not present. Use ISO 8601 for dates/times (e.g., 2000-01-31, 22:30)."
}

// Extract returns the known fields found in userInput. Keys outside the
// profile are dropped; a reply that is not a JSON object yields an empty map.
func (p *ProfileExtractor) Extract(ctx context.Context, userInput string) (models.Profile, error) {
	reply, err := p.client.Complete(ctx, llm.Request{
		Model: p.model,
		Messages: []llm.Message{
			{Role: models.RoleSystem, Content: extractionPrompt()},
			{Role: models.RoleUser, Content: userInput},
		},
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(stripCodeFence(reply)), &raw); err != nil {
		return models.Profile{}, nil
	}

	updates := models.Profile{}
	for k, v := range raw {
		if _, known := profileKinds[k]; known {
			updates[k] = v
		}
	}
	return updates, nil
}

// stripCodeFence removes a ```json fence some models wrap around JSON output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// MergeProfile overlays updates on existing and coerces every field to its
// type. Null values remove the field. When any value fails to coerce the
// merge is rejected and ok is false.
func MergeProfile(existing, updates models.Profile) (merged models.Profile, ok bool) {
	combined := make(map[string]any, len(existing)+len(updates))
	for k, v := range existing {
		combined[k] = v
	}
	for k, v := range updates {
		combined[k] = v
	}

	merged = models.Profile{}
	for k, v := range combined {
		kind, known := profileKinds[k]
		if !known || v == nil {
			continue
		}
		coerced, err := coerceField(kind, v)
		if err != nil {
			return nil, false
		}
		merged[k] = coerced
	}
	return merged, true
}

func coerceField(kind fieldKind, v any) (any, error) {
	switch kind {
	case kindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case kindInt:
		return coerceInt(v)
	case kindFloat:
		return coerceFloat(v)
	case kindBool:
		return coerceBool(v)
	case kindDate:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected date string, got %T", v)
		}
		t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
		if err != nil {
			return nil, err
		}
		return t.Format("2006-01-02"), nil
	case kindClock:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected time string, got %T", v)
		}
		return coerceClock(s)
	}
	return nil, fmt.Errorf("unknown field kind %d", kind)
}

func coerceInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not a whole number", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("expected integer, got %T", v)
}

func coerceFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("expected number, got %T", v)
}

func coerceBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case float64:
		switch b {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case int:
		switch b {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y", "on", "1":
			return true, nil
		case "false", "no", "n", "off", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("expected boolean, got %v", v)
}

// coerceClock normalises HH:MM or HH:MM:SS to HH:MM:SS.
func coerceClock(s string) (string, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04:05"), nil
		}
	}
	return "", fmt.Errorf("invalid time of day %q", s)
}
