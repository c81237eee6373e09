package session

import "context"

// Channel connects a running plan to whoever is steering it. The
// executor owns the channel: it sends every event in order, receives
// at most one decision per await, and closes the channel exactly once
// when the run reaches a terminal event.
//
// Implementations must preserve send order and must make Send and
// Receive return ErrClosed after Close.
type Channel interface {
	// Send publishes one run event. Returns ErrClosed after Close.
	Send(ctx context.Context, e Event) error

	// Receive blocks until a decision arrives, the context ends, or
	// the channel is closed. Decision timeouts are expressed through
	// the context deadline.
	Receive(ctx context.Context) (Decision, error)

	// Close releases the channel. Safe to call once; the executor is
	// the only caller.
	Close() error
}
