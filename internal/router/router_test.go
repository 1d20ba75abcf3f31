package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"dtw-backend/internal/handlers"
	"dtw-backend/internal/llm"
	"dtw-backend/internal/models"
	"dtw-backend/internal/repository"
	"dtw-backend/internal/services"
	"dtw-backend/internal/websocket"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := zap.NewNop()
	store := repository.NewMemoryStore()
	client := llm.NewMockClient()
	hub := websocket.NewHub(nil, store, log)

	onboarding := services.NewOnboardingService(store, log)
	checkins := services.NewCheckinService(store, store, hub, log)
	chat := services.NewChatService(store, store, client, services.NewProfileExtractor(client, "mock"), hub, "mock", log)

	h := New(
		log,
		handlers.NewOnboardingHandler(onboarding),
		handlers.NewCheckinHandler(checkins),
		handlers.NewChatHandler(chat),
		handlers.NewHealthHandler(),
		hub.HandleWebSocket,
		"*",
	)

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return srv
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		json.NewDecoder(resp.Body).Decode(out)
	}
	return resp
}

func TestRouter_OnboardThenCheckinAndChat(t *testing.T) {
	srv := newTestServer(t)

	var onboard models.OnboardingResponse
	resp := postJSON(t, srv.URL+"/api/onboarding/", map[string]string{"name": " Alice ", "email": "alice@example.com"}, &onboard)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("onboarding: expected 200, got %d", resp.StatusCode)
	}
	if onboard.Message != "Welcome Alice!" {
		t.Fatalf("unexpected welcome %q", onboard.Message)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Errorf("expected X-Request-ID on response")
	}

	var checkin models.CheckinResponse
	resp = postJSON(t, srv.URL+"/api/checkin/", map[string]string{
		"user_id":   onboard.UserID.String(),
		"note":      "feeling good",
		"timestamp": "2025-03-01T08:30:00Z",
	}, &checkin)
	if resp.StatusCode != http.StatusOK || checkin.Status != "ok" || checkin.Message != "Check-in recorded" {
		t.Fatalf("check-in: got %d %+v", resp.StatusCode, checkin)
	}

	listResp, err := http.Get(srv.URL + "/api/checkin/" + onboard.UserID.String() + "?limit=10")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var list models.CheckinListResponse
	json.NewDecoder(listResp.Body).Decode(&list)
	listResp.Body.Close()
	if len(list.CheckIns) != 1 || list.CheckIns[0].Note == nil || *list.CheckIns[0].Note != "feeling good" {
		t.Fatalf("unexpected check-in list %+v", list)
	}

	chatReq := map[string]string{"user_id": onboard.UserID.String(), "session_id": "s1", "message": "hello"}
	postJSON(t, srv.URL+"/api/onboarding/chat", chatReq, nil)
	chatReq["message"] = "second"
	var chat models.ChatResponse
	resp = postJSON(t, srv.URL+"/api/onboarding/chat", chatReq, &chat)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d", resp.StatusCode)
	}
	if len(chat.History) != 4 || chat.History[2].Content != "second" || chat.History[3].Role != models.RoleAssistant {
		t.Fatalf("unexpected history %+v", chat.History)
	}

	histResp, err := http.Get(srv.URL + "/api/onboarding/chat/history?user_id=" + onboard.UserID.String() + "&session_id=s1")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var hist models.ChatHistoryResponse
	json.NewDecoder(histResp.Body).Decode(&hist)
	histResp.Body.Close()
	if len(hist.History) != 4 {
		t.Fatalf("expected 4 stored messages, got %d", len(hist.History))
	}
}

func TestRouter_ErrorStatuses(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		path     string
		body     interface{}
		wantCode int
		wantAPI  string
	}{
		{"onboarding bad email", "/api/onboarding/", map[string]string{"name": "A", "email": "nope"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"onboarding blank name", "/api/onboarding/", map[string]string{"name": "  ", "email": "a@example.com"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"check-in unknown user", "/api/checkin/", map[string]string{"user_id": "8b3f5c1e-0d7a-4b8e-9a61-2f0c3d4e5f60"}, http.StatusNotFound, "NOT_FOUND"},
		{"check-in malformed user", "/api/checkin/", map[string]string{"user_id": "42"}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"chat unknown user", "/api/onboarding/chat", map[string]string{"user_id": "8b3f5c1e-0d7a-4b8e-9a61-2f0c3d4e5f60", "session_id": "s", "message": "hi"}, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var errResp models.ErrorResponse
			resp := postJSON(t, srv.URL+tc.path, tc.body, &errResp)
			if resp.StatusCode != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, resp.StatusCode)
			}
			if errResp.Error.Code != tc.wantAPI {
				t.Errorf("expected %q, got %q", tc.wantAPI, errResp.Error.Code)
			}
			if errResp.Error.RequestID == "" {
				t.Errorf("expected request id in error envelope")
			}
		})
	}
}

func TestRouter_Health(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/health"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s failed: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
