package parse

import "context"

// ChatProvider produces a JSON completion for a system+user prompt pair.
type ChatProvider interface {
	CompleteJSON(ctx context.Context, purpose, system, user string) (string, error)
}
