package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		// Fallback to v4 if v7 fails
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	UserID           ID
	UserSupplementID ID
	PeriodID         ID
	ReportID         ID
)

// String conversions for domain IDs
func (id UserID) String() string           { return ID(id).String() }
func (id UserSupplementID) String() string { return ID(id).String() }
func (id PeriodID) String() string         { return ID(id).String() }
func (id ReportID) String() string         { return ID(id).String() }

// ParseUserID parses a string into UserID
func ParseUserID(s string) (UserID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: user ID cannot be empty", ErrValidation)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: user ID must be a UUID", ErrValidation)
	}
	return UserID(s), nil
}

// ParseUserSupplementID parses a string into UserSupplementID
func ParseUserSupplementID(s string) (UserSupplementID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: supplement ID cannot be empty", ErrValidation)
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("%w: supplement ID must be a UUID", ErrValidation)
	}
	return UserSupplementID(s), nil
}

// ParsePeriodID parses a string into PeriodID
func ParsePeriodID(s string) (PeriodID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: period ID cannot be empty", ErrValidation)
	}
	return PeriodID(s), nil
}

// UUID returns the identifier as a uuid.UUID, uuid.Nil when malformed
func (id UserID) UUID() uuid.UUID {
	parsed, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

// UUID returns the identifier as a uuid.UUID, uuid.Nil when malformed
func (id UserSupplementID) UUID() uuid.UUID {
	parsed, err := uuid.Parse(string(id))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
