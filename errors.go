package inmemdb

import (
	"errors"
	"fmt"
)

// Error types for specific failure scenarios
var (
	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed indicates the database has been closed
	ErrClosed = errors.New("database is closed")

	// ErrNotStarted indicates an operation that needs a running server
	ErrNotStarted = errors.New("database is not started")

	// ErrReadOnly indicates a write sent to a replica
	ErrReadOnly = errors.New("database is a read-only replica")
)

// ConnectionError represents a failure to bind or reach an address
type ConnectionError struct {
	Addr string
	Err  error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error to %s: %v", e.Addr, e.Err)
}

// Unwrap returns the wrapped error
func (e *ConnectionError) Unwrap() error {
	return e.Err
}
