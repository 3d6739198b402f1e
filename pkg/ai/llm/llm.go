// Package llm is the provider-neutral chat surface used for prompt
// generation and vocabulary categorization.
package llm

import "context"

// LLM is implemented by every chat provider
type LLM interface {
	Chat(ctx context.Context, messages []Message, opts ...Option) (Response, error)
}

// Response is a single completion
type Response struct {
	Message Message `json:"message"`
	Usage   Usage   `json:"usage"`
	Model   string  `json:"model,omitempty"`
}

// Text returns the completion text
func (r Response) Text() string {
	return r.Message.Content
}

// ChatOptions configures a chat call
type ChatOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
	JSONMode    bool
}

// Option mutates ChatOptions
type Option func(*ChatOptions)

// DefaultOptions returns provider-independent defaults. Providers fill in
// their own model when Model is empty.
func DefaultOptions() *ChatOptions {
	return &ChatOptions{
		Temperature: 0.7,
		MaxTokens:   1024,
	}
}

// Apply folds opts over the defaults
func Apply(opts ...Option) *ChatOptions {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithModel selects the model
func WithModel(model string) Option {
	return func(o *ChatOptions) {
		o.Model = model
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float32) Option {
	return func(o *ChatOptions) {
		o.Temperature = t
	}
}

// WithMaxTokens caps the completion length
func WithMaxTokens(n int) Option {
	return func(o *ChatOptions) {
		o.MaxTokens = n
	}
}

// WithJSONMode asks the provider for a JSON object response
func WithJSONMode() Option {
	return func(o *ChatOptions) {
		o.JSONMode = true
	}
}
