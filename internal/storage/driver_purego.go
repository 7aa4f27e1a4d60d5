//go:build !cgo_sqlite

package storage

// Default build. Pure Go SQLite, no C toolchain required.

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
