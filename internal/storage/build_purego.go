//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build: modernc.org/sqlite, no C toolchain needed. Vector ranking
// is computed in Go, which is fine for a personal library of songs.
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	DriverName               = "sqlite"
	VectorExtensionAvailable = false
	BuildMode                = "purego"
)
