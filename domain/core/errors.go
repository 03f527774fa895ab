package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound        = errors.New("resource not found")
	ErrSweepNotFound   = fmt.Errorf("%w: sweep", ErrNotFound)
	ErrVariantNotFound = fmt.Errorf("%w: variant", ErrNotFound)
	ErrResultNotFound  = fmt.Errorf("%w: result", ErrNotFound)
	ErrDatasetNotFound = fmt.Errorf("%w: dataset", ErrNotFound)

	// Validation errors
	ErrConfigInvalid     = errors.New("invalid run configuration")
	ErrEmptyDataset      = errors.New("dataset has no observations")
	ErrRaggedMatrix      = errors.New("regressor rows have unequal length")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrSingleObservation = errors.New("temperature undefined for fewer than two observations")

	// Sampling errors
	ErrNumerical           = errors.New("numerical failure in target evaluation")
	ErrConvergence         = errors.New("sampler failed to converge")
	ErrInsufficientSamples = errors.New("insufficient retained samples")
	ErrResourceExhausted   = errors.New("resource limit exceeded")
	ErrSweepCancelled      = errors.New("sweep cancelled")

	// Determinism errors
	ErrSeedMismatch        = errors.New("seed mismatch")
	ErrFingerprintMismatch = errors.New("fingerprint mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: validation failed for %s: %s", ErrConfigInvalid, field, reason)
}

func NewConvergenceError(variantID string, divergent, chains int) error {
	return fmt.Errorf("%w: variant %s had %d of %d chains divergent", ErrConvergence, variantID, divergent, chains)
}

func NewInsufficientSamplesError(got, min int) error {
	return fmt.Errorf("%w: %d retained, minimum %d", ErrInsufficientSamples, got, min)
}

func NewDimensionError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has length %d, expected %d", ErrDimensionMismatch, what, got, want)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrConfigInvalid) ||
		errors.Is(err, ErrEmptyDataset) ||
		errors.Is(err, ErrRaggedMatrix) ||
		errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrSingleObservation)
}

func IsSamplingError(err error) bool {
	return errors.Is(err, ErrNumerical) ||
		errors.Is(err, ErrConvergence) ||
		errors.Is(err, ErrInsufficientSamples)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrSeedMismatch) ||
		errors.Is(err, ErrFingerprintMismatch)
}
