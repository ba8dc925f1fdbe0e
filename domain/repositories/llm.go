package repositories

import "context"

// LargeLanguageModel abstracts any chat/LLM provider
type LargeLanguageModel interface {
	// Complete takes a user prompt and returns the model's reply
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
	// Name identifies the provider in logs and fallback chains
	Name() string
}

// CompletionOptions tunes a single completion request.
// A zero MaxTokens or nil Temperature means "use the provider default".
type CompletionOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  *float32
}

// Temperature returns v as a CompletionOptions.Temperature value
func Temperature(v float32) *float32 { return &v }

// TemperatureOr returns the requested temperature, or def when none was set
func (o CompletionOptions) TemperatureOr(def float32) float32 {
	if o.Temperature == nil {
		return def
	}
	return *o.Temperature
}

// ChatMessage represents a single message in a conversation
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the type of message sender
type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)

// Messages builds the message list for a single-turn completion,
// with the system prompt first when one is set
func (o CompletionOptions) Messages(prompt string) []ChatMessage {
	messages := make([]ChatMessage, 0, 2)
	if o.SystemPrompt != "" {
		messages = append(messages, ChatMessage{Role: SystemRole, Content: o.SystemPrompt})
	}
	return append(messages, ChatMessage{Role: UserRole, Content: prompt})
}
