// Package apperr defines sentinel errors shared across the application layers.
package apperr

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// ErrFrozenStructure indicates an enrichment pass mutated a structural
	// field fixed at skeleton time. Always a programming defect, never input.
	ErrFrozenStructure = errors.New("frozen structure violated")

	// ErrAccounting indicates the backoff counter identities do not hold.
	ErrAccounting = errors.New("backoff accounting mismatch")
)
