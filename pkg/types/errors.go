package types

import "errors"

// Domain errors for type validation
var (
	// Chunk errors
	ErrInvalidLineRange = errors.New("invalid line range")
	ErrChunkOrder       = errors.New("chunks must be ordered by start line")
	ErrChunkID          = errors.New("chunk id must match its position")

	// Fact errors
	ErrEmptyName     = errors.New("name cannot be empty")
	ErrEmptyPath     = errors.New("path cannot be empty")
	ErrCountMismatch = errors.New("count does not match list length")
	ErrInvalidLine   = errors.New("line numbers must be positive")
	ErrEmptyHash     = errors.New("content hash cannot be empty")
)
