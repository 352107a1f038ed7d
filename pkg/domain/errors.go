package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by key finds no record.
type ErrNotFound struct {
	Entity EntityType
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrConflict is returned when a write would violate a uniqueness constraint.
type ErrConflict struct {
	Entity EntityType
	Field  string
	Value  string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("%s with %s %q already exists", e.Entity, e.Field, e.Value)
}

// ErrValidation reports invalid input detected before any write.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e ErrValidation) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid field %s", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// MissingField builds the validation error for an absent required field.
func MissingField(field string) error {
	return ErrValidation{Field: field, Reason: "is required"}
}

// IsNotFound reports whether err wraps an ErrNotFound.
func IsNotFound(err error) bool {
	var target ErrNotFound
	return errors.As(err, &target)
}

// IsConflict reports whether err wraps an ErrConflict.
func IsConflict(err error) bool {
	var target ErrConflict
	return errors.As(err, &target)
}

// IsValidation reports whether err wraps an ErrValidation or a blocking rule
// violation, both of which are caller mistakes rather than store failures.
func IsValidation(err error) bool {
	var verr ErrValidation
	if errors.As(err, &verr) {
		return true
	}
	var rerr RuleViolationError
	return errors.As(err, &rerr)
}
