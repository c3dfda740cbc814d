// Package sqlite opens control-data databases through whichever driver the
// build selected: the pure Go modernc.org/sqlite by default, or
// mattn/go-sqlite3 (via contrib/sqlite-external) when built with
// -tags cgo_sqlite.
package sqlite

import (
	"database/sql"
	"strings"
)

// DriverName returns the database/sql driver name.
func DriverName() string { return driverName }

// DriverType returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string { return driverType }

// IsCGO reports whether the CGO driver is linked in.
func IsCGO() bool { return driverType == "cgo" }

// Open opens or creates the database at path and checks the connection.
func Open(path string) (*sql.DB, error) {
	return open(path)
}

// OpenReadOnly opens an existing database without write access. A file that
// is not a SQLite database fails here rather than at the first query.
func OpenReadOnly(path string) (*sql.DB, error) {
	dsn := path
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	db, err := open(dsn + "?mode=ro")
	if err != nil {
		return nil, err
	}
	var n int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master`).Scan(&n); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func open(dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; SQLite serializes anyway.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Info describes the linked driver.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns the driver the binary was built with.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
