package providers

import "context"

// CompletionRequest is one prompt sent to a text-completion backend
type CompletionRequest struct {
	System      string
	User        string
	Temperature float64
	MaxTokens   int
}

// TextCompletionProvider is an opaque generative text service
type TextCompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
