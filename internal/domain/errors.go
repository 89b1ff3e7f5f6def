package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that no document or image matched.
	ErrNotFound = errors.New("not found")

	// ErrStoreClosed indicates that the store has been closed.
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidID indicates a malformed identifier. It wraps ErrNotFound:
	// a bad id is reported the same way as a missing record.
	ErrInvalidID = fmt.Errorf("invalid identifier: %w", ErrNotFound)
)
