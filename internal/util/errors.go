package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrUnknownCard indicates a deck references a card id that is not in the catalog
	ErrUnknownCard = errors.New("unknown card id")

	// ErrDeckTooSmall indicates a deck's main section is below the acceptance threshold
	ErrDeckTooSmall = errors.New("main deck too small")

	// ErrInvalidConfig indicates invalid or incomplete configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrIntegrity indicates an upload integrity check failed
	ErrIntegrity = errors.New("integrity check failed")
)
