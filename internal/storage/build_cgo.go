//go:build sqlite_vec
// +build sqlite_vec

package storage

// Built with CGO and the sqlite_vec tag: mattn/go-sqlite3 with the
// sqlite-vec extension, so near-text and near-object ranking runs in SQL.
//
//   CGO_ENABLED=1 go build -tags "sqlite_vec" ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverName               = "sqlite3"
	VectorExtensionAvailable = true
	BuildMode                = "cgo"
)
