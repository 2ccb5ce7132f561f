package domain

import "context"

// Channel is the interface for platform-facing I/O (Discord).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}
