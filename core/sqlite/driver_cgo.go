//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3, selected with -tags cgo_sqlite.
// The driver registration lives in contrib/sqlite-external.
package sqlite

import (
	_ "github.com/FocuswithJustin/JuniperScript/contrib/sqlite-external" // CGO SQLite driver
)

const (
	driverName    = "sqlite3"
	driverType    = "cgo"
	driverPackage = "github.com/mattn/go-sqlite3 (via contrib/sqlite-external)"
)
