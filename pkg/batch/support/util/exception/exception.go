// Package exception defines BatchError, the error type every batch component returns, and the
// helpers used to classify failures as retryable, skippable or fatal.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"runtime"
)

// BatchError is an error raised by a batch component. Module names the component that failed
// ("reader", "snapshot_publish", "config", ...).
type BatchError struct {
	Module      string
	Message     string
	OriginalErr error
	isRetryable bool
	isSkippable bool
	// StackTrace is captured at construction for DEBUG logging.
	StackTrace string
}

// NewBatchError creates a BatchError wrapping originalErr, which may be nil.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  string(buf[:n]),
	}
}

// NewBatchErrorf creates a non-retryable, non-skippable BatchError with a formatted message.
// A trailing error argument is wrapped rather than formatted.
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var cause error
	if len(a) > 0 {
		if err, ok := a[len(a)-1].(error); ok {
			cause = err
			a = a[:len(a)-1]
		}
	}
	return NewBatchError(module, fmt.Sprintf(format, a...), cause, false, false)
}

// Error formats the error as "[module] message: cause".
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped error.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the operation may succeed when repeated.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable reports whether the item that caused the error may be skipped.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsTemporary reports whether err looks transient: a retryable BatchError anywhere in the chain,
// a deadline, a network timeout or a dropped database connection.
func IsTemporary(err error) bool {
	if err == nil {
		return false
	}
	var be *BatchError
	if errors.As(err, &be) && be.isRetryable {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsFatal reports whether err must stop the job: cancellation, or a BatchError that is neither
// retryable nor skippable.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var be *BatchError
	if errors.As(err, &be) {
		return !be.isRetryable && !be.isSkippable
	}
	return false
}

// ExtractErrorMessage returns the innermost BatchError message, or err.Error() for other errors.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		if be, ok := cur.(*BatchError); ok {
			msg = be.Message
		}
	}
	return msg
}
