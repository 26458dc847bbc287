// Package llm talks to a chat-completion model and pulls JSON out of its
// free-form replies.
package llm

import "context"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// Completer returns the model's reply to an ordered conversation.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, messages []Message) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// System and User build single messages.
func System(content string) Message { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message   { return Message{Role: RoleUser, Content: content} }
