package session

import (
	"context"
	"sync"
)

// InProc is an in-process Channel for embedding the executor directly
// or driving it from tests. Events are buffered; decisions hand off
// through an unbuffered channel so a submitted decision is consumed by
// exactly one Receive.
type InProc struct {
	events    chan Event
	decisions chan Decision
	closed    chan struct{}
	once      sync.Once
}

// NewInProc creates an in-process channel with the given event buffer.
func NewInProc(buffer int) *InProc {
	return &InProc{
		events:    make(chan Event, buffer),
		decisions: make(chan Decision),
		closed:    make(chan struct{}),
	}
}

// Send delivers one event to the consuming side.
func (c *InProc) Send(ctx context.Context, e Event) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.events <- e:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks for the next submitted decision.
func (c *InProc) Receive(ctx context.Context) (Decision, error) {
	select {
	case d := <-c.decisions:
		return d, nil
	case <-c.closed:
		return Decision{}, ErrClosed
	case <-ctx.Done():
		return Decision{}, ctx.Err()
	}
}

// Close releases the channel. The events buffer stays readable so the
// consuming side can drain what was already sent.
func (c *InProc) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Events exposes the consuming side of the event stream.
func (c *InProc) Events() <-chan Event {
	return c.events
}

// Submit hands a decision to a pending Receive.
func (c *InProc) Submit(ctx context.Context, d Decision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	select {
	case c.decisions <- d:
		return nil
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
