package notifications

import "errors"

// Notification errors.
var (
	ErrChannelNotFound   = errors.New("notification channel not found")
	ErrNoSender          = errors.New("no sender for channel type")
	ErrQueueItemNotFound = errors.New("queue item not found")
)

// RetryableError marks whether a delivery failure is worth another attempt.
// Errors that carry no such mark are treated as transient.
type RetryableError struct {
	Err       error
	Retryable bool
}

// NewRetryableError marks err as transient.
func NewRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: true}
}

// NewNonRetryableError marks err as permanent.
func NewNonRetryableError(err error) *RetryableError {
	return &RetryableError{Err: err, Retryable: false}
}

func (e *RetryableError) Error() string { return e.Err.Error() }

func (e *RetryableError) Unwrap() error { return e.Err }

// IsRetryable reports the mark.
func (e *RetryableError) IsRetryable() bool { return e.Retryable }

// isRetryable honours any error in the chain that has an IsRetryable method,
// including the senders' own error types.
func isRetryable(err error) bool {
	var r interface{ IsRetryable() bool }
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return true
}
