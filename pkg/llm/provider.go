// Package llm provides the completion-provider abstraction used by the
// browsing engine. Providers handle API communication with an LLM service
// and nothing else; how prompts are assembled and how answers are used is
// the engine's business.
package llm

import "context"

// MessageRole identifies the author of a message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn of a chat completion request.
type Message struct {
	Role    MessageRole
	Content string
}

// NewSystemMessage creates a system-role message.
func NewSystemMessage(content string) *Message {
	return &Message{Role: RoleSystem, Content: content}
}

// NewUserMessage creates a user-role message.
func NewUserMessage(content string) *Message {
	return &Message{Role: RoleUser, Content: content}
}

// Provider defines the interface for LLM integrations.
//
// This service only ever needs full responses (query outcomes are polled,
// never streamed to clients), so the interface is deliberately
// non-streaming.
type Provider interface {
	// Complete sends the messages to the LLM and returns the assistant's
	// full response text.
	Complete(ctx context.Context, messages []*Message) (string, error)

	// Model returns the model name being used.
	Model() string
}
