package registry

import "errors"

// Precondition and persistence errors reported by registry operations.
var (
	ErrEmptyPath = errors.New("directory path is empty")
	ErrDuplicate = errors.New("directory already registered")
	ErrNotFound  = errors.New("directory not found")
	ErrStorage   = errors.New("persisting registry failed")
)
