package llm

import (
	"context"
	"errors"
)

// Message is one turn of the conversation sent to the provider.
type Message struct {
	Role    string // "system", "user" or "assistant"
	Content string
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature float32
	// JSON asks the provider to answer with a single JSON object.
	JSON bool
}

// Client is the black-box language model: send a conversation, receive a reply.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

var ErrEmptyReply = errors.New("llm returned empty reply")

// splitSystem separates leading system messages from the rest of the conversation.
func splitSystem(msgs []Message) (system string, rest []Message) {
	for i, m := range msgs {
		if m.Role != "system" {
			return system, msgs[i:]
		}
		if system != "" {
			system += "\n\n"
		}
		system += m.Content
	}
	return system, nil
}
