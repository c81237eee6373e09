package llm

import "errors"

// TransientError wraps an error that may succeed on retry: network
// failures, rate limits, 5xx responses.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError marks an error as retryable.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError wraps an error retrying cannot fix: auth failures, bad
// requests, unknown providers.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError marks an error as non-retryable.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether the error should be retried.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// IsFatal reports whether retrying is pointless.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
