package domain

import "context"

// Completer is the completion backend: an ordered turn sequence in, reply
// text out. One synchronous request/response call, no streaming.
type Completer interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
	Name() string
	Model() string
	Healthy(ctx context.Context) error
}
