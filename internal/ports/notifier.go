package ports

import "context"

// Notifier delivers operator alerts (risk breaches, partial batches).
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
