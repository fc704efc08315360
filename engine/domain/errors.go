package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// Store errors.
	ErrStoreUnavailable = errors.New("catalog store unavailable")
	ErrPartNotFound     = errors.New("part not found")
	ErrDanglingEdge     = errors.New("edge references missing part")

	// Ingestion errors.
	ErrFetchTransient  = errors.New("transient fetch failure")
	ErrMissingIdentity = errors.New("listing has no usable identity")

	// Classification errors.
	ErrClassifierUnavailable = errors.New("classifier service unavailable")

	// Composition errors.
	ErrMalformedFragment = errors.New("fragment failed schema validation")

	// Validation sentinels.
	ErrInvalidPart          = errors.New("invalid part")
	ErrInvalidVideo         = errors.New("invalid installation video")
	ErrInvalidEdge          = errors.New("invalid compatibility edge")
	ErrInvalidStockStatus   = errors.New("invalid stock status")
	ErrInvalidRelation      = errors.New("invalid relation")
	ErrInvalidRole          = errors.New("invalid conversation role")
	ErrQueryTooShort        = errors.New("query too short")
	ErrQueryInjection       = errors.New("query contains suspicious content")
	ErrSuspiciousContent    = errors.New("listing contains suspicious content")
	ErrUnknownApplianceType = errors.New("unknown appliance type")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Wrapped }

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
