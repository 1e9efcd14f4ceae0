package domain

import (
	"context"
	"errors"
	"io/fs"
)

// Common domain errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidWorkerCount = errors.New("worker count must be at least 1")

	// Session errors
	ErrSessionUnavailable = errors.New("remote session unavailable")
	ErrSessionLost        = errors.New("remote session lost")

	// Transfer errors
	ErrRemoteNotFound = errors.New("remote file not found")
	ErrSizeMismatch   = errors.New("local size does not match remote size")
	ErrRemoteChanged  = errors.New("remote size changed between attempts")
	ErrCanceled       = errors.New("run canceled before task started")
)

// FailureReason is the terminal classification of a failed attempt
type FailureReason string

const (
	ReasonNone               FailureReason = ""
	ReasonSessionUnavailable FailureReason = "session-unavailable"
	ReasonStat               FailureReason = "stat-error"
	ReasonIO                 FailureReason = "io-error"
	ReasonSizeMismatch       FailureReason = "size-mismatch"
	ReasonRemoteChanged      FailureReason = "remote-changed"
	ReasonCanceled           FailureReason = "canceled"
)

// Retryable returns true if another attempt may succeed.
// Session loss is retryable because the worker reconnects before retrying.
func (r FailureReason) Retryable() bool {
	switch r {
	case ReasonStat, ReasonIO, ReasonSizeMismatch, ReasonRemoteChanged, ReasonSessionUnavailable:
		return true
	default:
		return false
	}
}

// TransferError carries a classified reason along with the cause
type TransferError struct {
	Reason FailureReason
	Err    error
}

// Error returns the error message
func (e *TransferError) Error() string {
	if e.Err != nil {
		return string(e.Reason) + ": " + e.Err.Error()
	}
	return string(e.Reason)
}

// Unwrap returns the underlying error
func (e *TransferError) Unwrap() error {
	return e.Err
}

// NewTransferError creates a new classified error
func NewTransferError(reason FailureReason, err error) *TransferError {
	return &TransferError{Reason: reason, Err: err}
}

// ReasonOf classifies an error.
// A TransferError keeps its own reason; other errors are mapped from the sentinel they wrap.
func ReasonOf(err error) FailureReason {
	if err == nil {
		return ReasonNone
	}
	var te *TransferError
	if errors.As(err, &te) {
		return te.Reason
	}
	switch {
	case errors.Is(err, ErrSessionUnavailable), errors.Is(err, ErrSessionLost):
		return ReasonSessionUnavailable
	case errors.Is(err, ErrRemoteNotFound), errors.Is(err, fs.ErrNotExist):
		return ReasonStat
	case errors.Is(err, ErrRemoteChanged):
		return ReasonRemoteChanged
	case errors.Is(err, ErrSizeMismatch):
		return ReasonSizeMismatch
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return ReasonCanceled
	default:
		return ReasonIO
	}
}

// IsSessionFatal returns true if the error invalidates the whole session
func IsSessionFatal(err error) bool {
	return errors.Is(err, ErrSessionUnavailable) || errors.Is(err, ErrSessionLost)
}
