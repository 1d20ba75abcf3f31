package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"dtw-backend/internal/llm"
	"dtw-backend/internal/models"
	"dtw-backend/internal/repository"
)

type chatFixture struct {
	store  *repository.MemoryStore
	client *llm.MockClient
	pub    *recordingPublisher
	svc    *ChatService
	userID uuid.UUID
}

func newChatFixture(t *testing.T, withProfiles bool) *chatFixture {
	t.Helper()
	store := repository.NewMemoryStore()
	client := llm.NewMockClient()
	pub := &recordingPublisher{}

	var svc *ChatService
	if withProfiles {
		svc = NewChatService(store, store, client, NewProfileExtractor(client, "profile-model"), pub, "default-model", nil)
	} else {
		svc = NewChatService(store, store, client, nil, pub, "default-model", nil)
	}

	return &chatFixture{store: store, client: client, pub: pub, svc: svc, userID: onboardUser(t, store)}
}

func (f *chatFixture) chat(t *testing.T, session, message string) *models.ChatResponse {
	t.Helper()
	resp, err := f.svc.Chat(context.Background(), models.ChatRequest{
		UserID:    f.userID.String(),
		SessionID: session,
		Message:   message,
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	return resp
}

// chatCalls drops the JSON-mode profile extraction calls.
func chatCalls(client *llm.MockClient) []llm.Request {
	var out []llm.Request
	for _, c := range client.Calls() {
		if !c.JSON {
			out = append(out, c)
		}
	}
	return out
}

func assertAlternating(t *testing.T, history []models.ChatMessage, turns int) {
	t.Helper()
	if len(history) != 2*turns {
		t.Fatalf("expected %d messages, got %d", 2*turns, len(history))
	}
	for i, m := range history {
		want := models.RoleUser
		if i%2 == 1 {
			want = models.RoleAssistant
		}
		if m.Role != want {
			t.Fatalf("message %d: expected role %q, got %q", i, want, m.Role)
		}
	}
}

func TestChat_HistoryGrowsByTwoPerTurn(t *testing.T) {
	f := newChatFixture(t, false)

	var resp *models.ChatResponse
	for i := 1; i <= 5; i++ {
		resp = f.chat(t, "s1", fmt.Sprintf("message %d", i))
		assertAlternating(t, resp.History, i)
		if last := resp.History[len(resp.History)-1]; last.Content != resp.Reply {
			t.Fatalf("history should end with the reply, got %q", last.Content)
		}
	}
}

func TestChat_SecondCallSeesFirstTurn(t *testing.T) {
	f := newChatFixture(t, false)
	f.client.Reply = func(req llm.Request) (string, error) {
		return "reply to " + req.Messages[len(req.Messages)-1].Content, nil
	}

	f.chat(t, "s1", "hello")
	resp := f.chat(t, "s1", "how are you")

	want := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "reply to hello"},
		{Role: models.RoleUser, Content: "how are you"},
		{Role: models.RoleAssistant, Content: "reply to how are you"},
	}
	if len(resp.History) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(resp.History))
	}
	for i := range want {
		if resp.History[i] != want[i] {
			t.Fatalf("message %d: expected %+v, got %+v", i, want[i], resp.History[i])
		}
	}

	// The second request carries system prompt + first turn + new message.
	calls := chatCalls(f.client)
	second := calls[1].Messages
	if len(second) != 4 || second[0].Role != models.RoleSystem || second[3].Content != "how are you" {
		t.Fatalf("unexpected outgoing conversation: %+v", second)
	}
}

func TestChat_NewSessionStartsEmpty(t *testing.T) {
	f := newChatFixture(t, false)
	f.chat(t, "s1", "hello")

	hist, err := f.svc.History(context.Background(), f.userID.String(), "never-used")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(hist.History) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(hist.History))
	}

	resp := f.chat(t, "s2", "first")
	assertAlternating(t, resp.History, 1)

	calls := chatCalls(f.client)
	if n := len(calls[len(calls)-1].Messages); n != 2 {
		t.Fatalf("fresh session should send system prompt + message, sent %d", n)
	}
}

func TestChat_ModelFallback(t *testing.T) {
	f := newChatFixture(t, false)

	f.chat(t, "s1", "hi")
	if _, err := f.svc.Chat(context.Background(), models.ChatRequest{
		UserID: f.userID.String(), SessionID: "s1", Message: "again", Model: "gpt-4o",
	}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	calls := chatCalls(f.client)
	if calls[0].Model != "default-model" {
		t.Fatalf("expected default model, got %q", calls[0].Model)
	}
	if calls[1].Model != "gpt-4o" {
		t.Fatalf("expected requested model, got %q", calls[1].Model)
	}
}

func TestChat_UpstreamFailureLeavesHistoryUntouched(t *testing.T) {
	tests := []struct {
		name  string
		reply func(llm.Request) (string, error)
		cause error
	}{
		{"provider error", func(llm.Request) (string, error) { return "", errors.New("rate limited") }, nil},
		{"empty reply", func(llm.Request) (string, error) { return "  ", nil }, llm.ErrEmptyReply},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newChatFixture(t, false)
			f.chat(t, "s1", "hello")

			f.client.Reply = tc.reply
			_, err := f.svc.Chat(context.Background(), models.ChatRequest{
				UserID: f.userID.String(), SessionID: "s1", Message: "will fail",
			})

			var uerr *UpstreamError
			if !errors.As(err, &uerr) {
				t.Fatalf("expected UpstreamError, got %v", err)
			}
			if tc.cause != nil && !errors.Is(err, tc.cause) {
				t.Fatalf("expected %v to wrap %v", err, tc.cause)
			}

			hist, _ := f.svc.History(context.Background(), f.userID.String(), "s1")
			assertAlternating(t, hist.History, 1)
			if len(f.pub.published()) != 1 {
				t.Fatalf("failed turn should not publish an event")
			}
		})
	}
}

func TestChat_UnknownUser(t *testing.T) {
	f := newChatFixture(t, false)

	_, err := f.svc.Chat(context.Background(), models.ChatRequest{
		UserID: uuid.New().String(), SessionID: "s1", Message: "hi",
	})

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(f.client.Calls()) != 0 {
		t.Fatalf("LLM must not be called for unknown users")
	}
}

func TestChat_Validation(t *testing.T) {
	f := newChatFixture(t, false)
	uid := f.userID.String()

	tests := []struct {
		name      string
		req       models.ChatRequest
		wantField string
	}{
		{"missing session", models.ChatRequest{UserID: uid, Message: "hi"}, "session_id"},
		{"blank session", models.ChatRequest{UserID: uid, SessionID: "  ", Message: "hi"}, "session_id"},
		{"missing message", models.ChatRequest{UserID: uid, SessionID: "s1"}, "message"},
		{"blank message", models.ChatRequest{UserID: uid, SessionID: "s1", Message: " \n "}, "message"},
		{"malformed user id", models.ChatRequest{UserID: "u-1", SessionID: "s1", Message: "hi"}, "user_id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Chat(context.Background(), tc.req)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tc.wantField]; !ok {
				t.Fatalf("expected field %q in %v", tc.wantField, verr.Fields)
			}
		})
	}
}

func TestChat_ConcurrentTurnsStayAlternating(t *testing.T) {
	f := newChatFixture(t, false)

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.svc.Chat(context.Background(), models.ChatRequest{
				UserID: f.userID.String(), SessionID: "shared", Message: fmt.Sprintf("m%d", i),
			}); err != nil {
				t.Errorf("Chat failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	hist, err := f.svc.History(context.Background(), f.userID.String(), "shared")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	assertAlternating(t, hist.History, turns)
	if f.svc.locks.size() != 0 {
		t.Fatalf("session locks should be released")
	}
}

func TestChat_ProfileExtractionMerges(t *testing.T) {
	f := newChatFixture(t, true)
	f.client.Reply = func(req llm.Request) (string, error) {
		if !req.JSON {
			return "noted", nil
		}
		if req.Model != "profile-model" || req.Temperature != 0 {
			return "", fmt.Errorf("unexpected extraction request %+v", req)
		}
		switch req.Messages[len(req.Messages)-1].Content {
		case "I am 34 and go to bed at 22:30":
			return `{"age": "34", "sleep_bedtime": "22:30", "favourite_colour": "blue"}`, nil
		case "I have support from friends":
			return "```json\n{\"social_support\": \"yes\"}\n```", nil
		case "my age is thirty-ish":
			return `{"age": "thirty-ish"}`, nil
		}
		return "{}", nil
	}

	resp := f.chat(t, "s1", "I am 34 and go to bed at 22:30")
	if resp.Profile["age"] != 34 || resp.Profile["sleep_bedtime"] != "22:30:00" {
		t.Fatalf("unexpected profile %v", resp.Profile)
	}
	if _, ok := resp.Profile["favourite_colour"]; ok {
		t.Fatalf("unknown keys must be dropped")
	}

	resp = f.chat(t, "s1", "I have support from friends")
	if resp.Profile["social_support"] != true || resp.Profile["age"] != 34 {
		t.Fatalf("expected merged profile, got %v", resp.Profile)
	}

	resp = f.chat(t, "s1", "my age is thirty-ish")
	if resp.Profile["age"] != 34 {
		t.Fatalf("invalid update should keep previous profile, got %v", resp.Profile)
	}

	hist, _ := f.svc.History(context.Background(), f.userID.String(), "s1")
	if len(hist.Profile) != 3 {
		t.Fatalf("expected 3 stored fields, got %v", hist.Profile)
	}
}

func TestChat_ProfileExtractionFailureKeepsTurn(t *testing.T) {
	f := newChatFixture(t, true)
	f.client.Reply = func(req llm.Request) (string, error) {
		if req.JSON {
			return "", errors.New("extraction quota exceeded")
		}
		return "still here", nil
	}

	resp := f.chat(t, "s1", "I am 40")
	if resp.Reply != "still here" {
		t.Fatalf("unexpected reply %q", resp.Reply)
	}
	if len(resp.Profile) != 0 {
		t.Fatalf("expected empty profile, got %v", resp.Profile)
	}
	assertAlternating(t, resp.History, 1)
}

func TestChat_PublishesReplyEvent(t *testing.T) {
	f := newChatFixture(t, false)
	f.chat(t, "s1", "hello")
	f.chat(t, "s1", "again")

	events := f.pub.published()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	payload, ok := events[1].Payload.(models.ChatReplyEvent)
	if !ok || payload.SessionID != "s1" || payload.Turns != 2 {
		t.Fatalf("unexpected event payload %+v", events[1].Payload)
	}
}

func TestChat_SystemPromptLeadsConversation(t *testing.T) {
	f := newChatFixture(t, false)
	f.chat(t, "s1", "hello")

	first := chatCalls(f.client)[0].Messages[0]
	if first.Role != models.RoleSystem || !strings.Contains(first.Content, "Current date and time:") {
		t.Fatalf("expected system prompt first, got %+v", first)
	}
}
