package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient answers without calling any provider. Useful for local runs
// (LLM_PROVIDER=mock) and tests.
type MockClient struct {
	mu    sync.Mutex
	calls []Request

	// Reply overrides the default echo reply when set.
	Reply func(req Request) (string, error)
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Reply != nil {
		return m.Reply(req)
	}
	if req.JSON {
		return "{}", nil
	}

	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	return fmt.Sprintf("Thanks for sharing. You said %q. What does a typical day look like for you?", last), nil
}

// Calls returns a copy of every request received so far.
func (m *MockClient) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
