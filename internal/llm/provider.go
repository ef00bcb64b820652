package llm

import (
	"context"
)

// Message is a chat message in a provider-agnostic format
type Message struct {
	Role    string // "system", "user", "assistant"
	Content string
}

// Chat roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// Completer turns a conversation into text
type Completer interface {
	Complete(ctx context.Context, messages []Message, options ...Option) (string, error)
}
