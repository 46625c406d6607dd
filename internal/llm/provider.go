// Package llm wraps the outbound chat-completion provider. Callers must be
// prepared for errors and off-contract text and degrade accordingly.
package llm

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when no API key is available. Callers treat it
// the same as any other provider failure.
var ErrNotConfigured = errors.New("completion provider not configured")

// Turn is one prior conversation message passed as context.
type Turn struct {
	Role    string
	Content string
}

// Provider produces a chat completion for a system prompt, prior turns, and
// the current user message.
type Provider interface {
	Complete(ctx context.Context, systemPrompt string, history []Turn, userMessage string) (string, error)
}
