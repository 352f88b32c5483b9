package services

import (
	"errors"
	"fmt"

	"github.com/GCYYfun/ai-studio-sub001/internal/repositories"
)

// Machine-readable error kinds surfaced to API clients.
const (
	KindValidation    = "validation"
	KindNoMatch       = "no_match"
	KindParse         = "parse"
	KindInvalidResult = "invalid_result"
	KindConcurrentRun = "concurrent_run"
	KindBatchActive   = "batch_in_progress"
	KindCancelled     = "cancelled"
	KindPersistence   = "persistence"
	KindNoRecords     = "no_records"
	KindNotFound      = "not_found"
	KindInternal      = "internal"
)

var (
	ErrConcurrentRun   = errors.New("an evaluation is already running on this engine")
	ErrBatchInProgress = errors.New("batch in progress")
	ErrBatchCancelled  = errors.New("batch cancelled")
	ErrNoRecords       = errors.New("no matching history records")
	ErrNotFound        = repositories.ErrNotFound
)

// ValidationError reports input that cannot be evaluated as given.
type ValidationError struct {
	Kind    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func newNoMatchError(format string, args ...any) *ValidationError {
	return &ValidationError{Kind: KindNoMatch, Message: fmt.Sprintf(format, args...)}
}

// ParseError is returned when a backend response is not a JSON object
// after cleanup. Raw and Cleaned are kept for diagnostics.
type ParseError struct {
	Raw     string
	Cleaned string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to parse model response: %v", e.Cause)
	}
	return "failed to parse model response"
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// InvalidResultError is returned when a parsed response has the wrong
// shape for its step.
type InvalidResultError struct {
	Step   string
	Reason string
}

func (e *InvalidResultError) Error() string {
	return fmt.Sprintf("invalid %s result: %s", e.Step, e.Reason)
}

// PersistenceError wraps a storage failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repositories.ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}

// ErrorKind classifies err into one of the Kind constants.
func ErrorKind(err error) string {
	var (
		validationErr  *ValidationError
		parseErr       *ParseError
		invalidErr     *InvalidResultError
		persistenceErr *PersistenceError
	)

	switch {
	case err == nil:
		return ""
	case errors.As(err, &validationErr):
		return validationErr.Kind
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &invalidErr):
		return KindInvalidResult
	case errors.Is(err, ErrConcurrentRun):
		return KindConcurrentRun
	case errors.Is(err, ErrBatchInProgress):
		return KindBatchActive
	case errors.Is(err, ErrBatchCancelled):
		return KindCancelled
	case errors.Is(err, ErrNoRecords):
		return KindNoRecords
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &persistenceErr):
		return KindPersistence
	default:
		return KindInternal
	}
}
