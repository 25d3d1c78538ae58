package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider is a language-model backend that answers a whole conversation.
type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}
