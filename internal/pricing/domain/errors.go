package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingRequiredField is returned when a column the pipeline cannot run without is absent.
	ErrMissingRequiredField = errors.New("pricing: missing required field")
	// ErrUnsupportedContractTerm is returned when a contract length is not 12, 24 or 36 months.
	ErrUnsupportedContractTerm = errors.New("pricing: unsupported contract term")
	// ErrInvalidContractDates is returned when start or end dates are missing or reversed.
	ErrInvalidContractDates = errors.New("pricing: invalid contract dates")
	// ErrComputation is returned when a term block cannot be priced.
	ErrComputation = errors.New("pricing: computation error")
	// ErrInvalidWeights is returned when a weight profile is malformed.
	ErrInvalidWeights = errors.New("pricing: invalid weights")
	// ErrInvalidUplift is returned when an uplift entry cannot be applied.
	ErrInvalidUplift = errors.New("pricing: invalid uplift")
	// ErrEmptyMeterID is returned when a record is built without a meter id.
	ErrEmptyMeterID = errors.New("pricing: empty meter id")
	// ErrTermNotPresent is returned when editing a term the meter was not quoted for.
	ErrTermNotPresent = errors.New("pricing: term not present")
)

// MissingFieldError names the absent column.
type MissingFieldError struct {
	Field Field
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("pricing: missing required field %q", e.Field.Column())
}

// Unwrap lets errors.Is match ErrMissingRequiredField.
func (e *MissingFieldError) Unwrap() error { return ErrMissingRequiredField }

// ComputationError describes why a single term block could not be priced.
type ComputationError struct {
	Reason string
}

func (e *ComputationError) Error() string {
	return "pricing: computation error: " + e.Reason
}

func (e *ComputationError) Unwrap() error { return ErrComputation }

func computationErrorf(format string, args ...any) error {
	return &ComputationError{Reason: fmt.Sprintf(format, args...)}
}
