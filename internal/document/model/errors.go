package model

import "errors"

// Error taxonomy for the document store. Handlers map these onto HTTP
// statuses; the relay maps anything else onto an error event or a log line.
var (
	// ErrNotFound means the requested document id is absent from the store.
	ErrNotFound = errors.New("document not found")

	// ErrMalformedID means the id is not a valid document key.
	ErrMalformedID = errors.New("invalid document ID format")

	// ErrValidation wraps field-level validation failures, e.g. a missing
	// or oversized title. Use errors.Is to detect, err.Error() for detail.
	ErrValidation = errors.New("validation error")
)
