//go:build !cgo_sqlite

package storage

// Default build. Uses the pure Go SQLite port, so no C toolchain is needed.
//
// Build command:
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver to open
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
