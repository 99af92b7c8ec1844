package configentry

import "errors"

// Domain errors for the configentry package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, configentry.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a config entry ID does not exist.
	ErrNotFound = errors.New("configentry: not found")

	// ErrExists is returned when creating an entry with an ID that already exists.
	ErrExists = errors.New("configentry: already exists")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("configentry: invalid")
)
