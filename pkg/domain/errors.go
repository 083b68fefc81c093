package domain

import "errors"

// Common domain errors
var (
	// ErrConnectionClosed is returned when writing to a closed connection
	ErrConnectionClosed = errors.New("connection closed")
)
