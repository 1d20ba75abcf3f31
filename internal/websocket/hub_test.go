package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"dtw-backend/internal/events"
	"dtw-backend/internal/models"
	"dtw-backend/internal/repository"
)

func newHubServer(t *testing.T, redisClient *redis.Client) (*Hub, *httptest.Server, uuid.UUID) {
	t.Helper()
	store := repository.NewMemoryStore()
	userID := uuid.New()
	if err := store.CreateUser(context.Background(), &models.User{ID: userID, Name: "Alice", Email: "alice@example.com"}); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	hub := NewHub(redisClient, store, nil)
	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv, userID
}

func dial(t *testing.T, srv *httptest.Server, userID uuid.UUID) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user_id=" + userID.String()
	c, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func waitForConnections(t *testing.T, hub *Hub, userID uuid.UUID, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount(userID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, hub.ConnectionCount(userID))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func readEvent(t *testing.T, c *gws.Conn) models.WSMessage {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var msg models.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("bad event payload: %v", err)
	}
	return msg
}

func TestHub_InProcessPublish(t *testing.T) {
	hub, srv, userID := newHubServer(t, nil)
	c := dial(t, srv, userID)
	waitForConnections(t, hub, userID, 1)

	err := hub.Publish(context.Background(), models.WSMessage{Type: models.EventCheckinRecorded, UserID: userID, At: time.Now()})
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if got := readEvent(t, c); got.Type != models.EventCheckinRecorded {
		t.Fatalf("unexpected event type %q", got.Type)
	}
}

func TestHub_RedisFanOut(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub, srv, userID := newHubServer(t, client)
	c := dial(t, srv, userID)
	waitForConnections(t, hub, userID, 1)

	pub := events.NewRedisPublisher(client)
	msg := models.WSMessage{Type: models.EventChatReply, UserID: userID, At: time.Now()}

	// The subscription starts asynchronously; publish until it is picked up.
	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := client.PubSubNumSub(context.Background(), events.Channel(userID)).Result()
		if err == nil && n[events.Channel(userID)] > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("hub never subscribed to user channel")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := pub.Publish(context.Background(), msg); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	if got := readEvent(t, c); got.Type != models.EventChatReply || got.UserID != userID {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestHub_RejectsUnknownUser(t *testing.T) {
	_, srv, _ := newHubServer(t, nil)

	resp, err := http.Get(srv.URL + "/?user_id=" + uuid.New().String())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHub_RejectsMalformedUserID(t *testing.T) {
	_, srv, _ := newHubServer(t, nil)

	resp, err := http.Get(srv.URL + "/?user_id=nope")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHub_UnregisterOnClose(t *testing.T) {
	hub, srv, userID := newHubServer(t, nil)
	c := dial(t, srv, userID)
	waitForConnections(t, hub, userID, 1)

	c.Close()
	waitForConnections(t, hub, userID, 0)
}
