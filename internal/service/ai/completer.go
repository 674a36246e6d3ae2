package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/zhouzirui/waychat/backend/internal/model/chat"
)

var (
	// ErrNoReply reports a response that parsed but carried no reply text.
	ErrNoReply = errors.New("no reply in completion response")
	// ErrMissingCredential reports a provider configured without its secret.
	ErrMissingCredential = errors.New("completion credential not configured")
)

// Completer produces the next assistant reply for a transcript.
type Completer interface {
	Complete(ctx context.Context, turns []chat.Turn) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, turns []chat.Turn) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	return f(ctx, turns)
}

// APIError is a non-2xx answer from the completion endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("API error: %d", e.Status)
	}
	return fmt.Sprintf("API error: %d %s", e.Status, e.Body)
}
