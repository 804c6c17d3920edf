package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeCapture represents browser-driver/navigation errors
	ErrorTypeCapture ErrorType = "capture"
	// ErrorTypeEnrich represents enrichment-source errors
	ErrorTypeEnrich ErrorType = "enrich"
	// ErrorTypeGraph represents graph database errors
	ErrorTypeGraph ErrorType = "graph"
	// ErrorTypeState represents sync-state persistence errors
	ErrorTypeState ErrorType = "state"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Capture Errors

// ErrCaptureFailed is returned when a browser-driver operation fails
type ErrCaptureFailed struct {
	*BaseError
	Op       string
	Selector string
}

func NewCaptureFailed(op, selector string, err error) *ErrCaptureFailed {
	msg := fmt.Sprintf("capture operation failed: %s", op)
	if selector != "" {
		msg = fmt.Sprintf("capture operation failed: %s (%s)", op, selector)
	}
	return &ErrCaptureFailed{
		BaseError: NewBaseError(ErrorTypeCapture, msg, err),
		Op:        op,
		Selector:  selector,
	}
}

// Enrichment Errors

// ErrRateLimited is returned when the enrichment source returns HTTP 429.
// The caller must stop the enrichment phase for this run.
type ErrRateLimited struct {
	*BaseError
	ResetAt time.Time
}

func NewRateLimited(resetAt time.Time) *ErrRateLimited {
	return &ErrRateLimited{
		BaseError: NewBaseError(ErrorTypeEnrich, fmt.Sprintf("rate limit exceeded, resets at %s", resetAt.Format(time.RFC3339)), nil),
		ResetAt:   resetAt,
	}
}

// ErrAuthFailed is returned on HTTP 401/403 from the enrichment source.
// Fatal to the enrichment phase; never retried.
type ErrAuthFailed struct {
	*BaseError
	Status int
}

func NewAuthFailed(status int) *ErrAuthFailed {
	return &ErrAuthFailed{
		BaseError: NewBaseError(ErrorTypeEnrich, fmt.Sprintf("authentication failed (status %d)", status), nil),
		Status:    status,
	}
}

// ErrEnrichSource is a generic enrichment-source failure
type ErrEnrichSource struct {
	*BaseError
}

func NewEnrichSource(message string, err error) *ErrEnrichSource {
	return &ErrEnrichSource{
		BaseError: NewBaseError(ErrorTypeEnrich, message, err),
	}
}

// Graph Errors

// ErrGraphConnectionFailed is returned when Neo4j connection fails
type ErrGraphConnectionFailed struct {
	*BaseError
	URI string
}

func NewGraphConnectionFailed(uri string, err error) *ErrGraphConnectionFailed {
	return &ErrGraphConnectionFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to connect to Neo4j: %s", uri), err),
		URI:       uri,
	}
}

// ErrStoreFailed is returned when a single item's graph merge fails.
// The sync run logs it and continues with the next item.
type ErrStoreFailed struct {
	*BaseError
	TweetID string
}

func NewStoreFailed(tweetID string, err error) *ErrStoreFailed {
	return &ErrStoreFailed{
		BaseError: NewBaseError(ErrorTypeGraph, fmt.Sprintf("failed to merge tweet: %s", tweetID), err),
		TweetID:   tweetID,
	}
}

// State Errors

// ErrStateSaveFailed is returned when the watermark cannot be persisted
type ErrStateSaveFailed struct {
	*BaseError
	Path string
}

func NewStateSaveFailed(path string, err error) *ErrStateSaveFailed {
	return &ErrStateSaveFailed{
		BaseError: NewBaseError(ErrorTypeState, fmt.Sprintf("failed to save sync state: %s", path), err),
		Path:      path,
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	for err != nil {
		if baseErr, ok := err.(*BaseError); ok {
			return baseErr.Type == errType
		}
		if typed, ok := err.(interface{ base() *BaseError }); ok {
			return typed.base().Type == errType
		}
		err = errors.Unwrap(err)
	}
	return false
}

func (e *BaseError) base() *BaseError { return e }

// IsRateLimited checks whether err is (or wraps) a rate-limit signal
func IsRateLimited(err error) bool {
	var rl *ErrRateLimited
	return errors.As(err, &rl)
}

// IsAuthFailure checks whether err is (or wraps) an authentication failure
func IsAuthFailure(err error) bool {
	var af *ErrAuthFailed
	return errors.As(err, &af)
}

// IsCaptureError checks whether err is (or wraps) a capture failure
func IsCaptureError(err error) bool {
	var ce *ErrCaptureFailed
	return errors.As(err, &ce)
}
