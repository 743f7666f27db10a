package refine

import (
	"context"

	"github.com/shopgrep/shopgrep/internal/domain"
)

// ChatProvider produces a JSON completion for a system+user prompt pair.
type ChatProvider interface {
	CompleteJSON(ctx context.Context, purpose, system, user string) (string, error)
}

// ItemReader loads full item details for the judged window.
type ItemReader interface {
	GetItems(ctx context.Context, ids []string) ([]domain.Item, error)
}
