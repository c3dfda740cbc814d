// Package sqliteexternal registers the optional CGO SQLite driver
// (github.com/mattn/go-sqlite3) used for large control-data databases.
//
// It is compiled only with the cgo_sqlite build tag:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
//
// Without the tag, core/sqlite uses the pure Go modernc.org/sqlite driver.
package sqliteexternal
