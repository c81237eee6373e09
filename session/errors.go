package session

import "errors"

var (
	// ErrClosed is returned by Send and Receive after Close.
	ErrClosed = errors.New("session channel closed")

	// ErrUnknownEvent marks an envelope with an unrecognized type tag.
	ErrUnknownEvent = errors.New("unknown event type")

	// ErrInvalidDecision marks a malformed or unrecognized decision.
	ErrInvalidDecision = errors.New("invalid decision")
)
