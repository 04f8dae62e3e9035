package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrAlreadyOpen         = errors.New("terminal already has an open register session")
	ErrNotOpen             = errors.New("register session is not open")
	ErrSessionClosed       = errors.New("register session is closed")
	ErrInvalidTransition   = errors.New("invalid order status transition")
	ErrAlreadyVoided       = errors.New("order is already voided")
	ErrConcurrencyConflict = errors.New("concurrent inventory update detected")
)

// ValidationError rejects bad input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

func newValidationError(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InventoryBlockedError carries the stock warnings that stopped an operation.
type InventoryBlockedError struct {
	Warnings []StockWarning
}

func (e *InventoryBlockedError) Error() string {
	names := make([]string, 0, len(e.Warnings))
	for _, w := range e.Warnings {
		if w.Severity == SeverityCritical {
			names = append(names, w.IngredientName)
		}
	}
	return "insufficient inventory for: " + strings.Join(names, ", ")
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func AsInventoryBlocked(err error) (*InventoryBlockedError, bool) {
	var b *InventoryBlockedError
	if errors.As(err, &b) {
		return b, true
	}
	return nil, false
}
