package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound           = errors.New("resource not found")
	ErrSupplementNotFound = fmt.Errorf("%w: supplement", ErrNotFound)
	ErrPeriodNotFound     = fmt.Errorf("%w: intake period", ErrNotFound)
	ErrReportNotFound     = fmt.Errorf("%w: effect report", ErrNotFound)
	ErrEntryNotFound      = fmt.Errorf("%w: daily entry", ErrNotFound)

	// Validation errors
	ErrValidation          = errors.New("validation failed")
	ErrPeriodOverlap       = fmt.Errorf("%w: intake periods overlap", ErrValidation)
	ErrPeriodAlreadyClosed = fmt.Errorf("%w: intake period already closed", ErrValidation)
	ErrUnknownMetric       = fmt.Errorf("%w: unknown metric", ErrValidation)

	// Persistence errors
	ErrWriteConflict  = errors.New("write conflict")
	ErrStoreTransient = errors.New("transient store error")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrValidation, field, reason)
}

func NewOverlapError(start, end string) error {
	return fmt.Errorf("%w: interval %s..%s intersects an existing period", ErrPeriodOverlap, start, end)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsTransientError(err error) bool {
	return errors.Is(err, ErrStoreTransient) || errors.Is(err, ErrWriteConflict)
}
