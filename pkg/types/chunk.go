package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SourceChunk is a contiguous, line-bounded segment of one file
type SourceChunk struct {
	ChunkID   int    `json:"chunk_id"`
	StartLine int    `json:"start_line"` // 1-based, inclusive
	EndLine   int    `json:"end_line"`   // 1-based, inclusive
	Content   string `json:"content"`
}

// ContentHash returns the hex SHA-256 of the chunk content
func (c *SourceChunk) ContentHash() string {
	sum := sha256.Sum256([]byte(c.Content))
	return hex.EncodeToString(sum[:])
}

// LineCount returns the number of lines covered by the chunk
func (c *SourceChunk) LineCount() int {
	return c.EndLine - c.StartLine + 1
}

// SourceIndex is the chunked view of one file
type SourceIndex struct {
	Path       string        `json:"path,omitempty"`
	Language   Language      `json:"language"`
	LineCount  int           `json:"line_count"`
	ChunkCount int           `json:"chunk_count"`
	Chunks     []SourceChunk `json:"chunks"`
}

// Validate checks ordering, numbering and bounds of the chunk list
func (s *SourceIndex) Validate() error {
	if s.ChunkCount != len(s.Chunks) {
		return fmt.Errorf("chunk_count %d for %d chunks: %w", s.ChunkCount, len(s.Chunks), ErrCountMismatch)
	}

	prevStart := 0
	for i, c := range s.Chunks {
		if c.ChunkID != i {
			return fmt.Errorf("chunk %d has id %d: %w", i, c.ChunkID, ErrChunkID)
		}
		if c.StartLine < 1 || c.EndLine < c.StartLine || c.EndLine > s.LineCount {
			return fmt.Errorf("chunk %d [%d,%d] of %d lines: %w", i, c.StartLine, c.EndLine, s.LineCount, ErrInvalidLineRange)
		}
		if c.StartLine <= prevStart {
			return fmt.Errorf("chunk %d starts at %d: %w", i, c.StartLine, ErrChunkOrder)
		}
		prevStart = c.StartLine
	}

	return nil
}
