//go:build cgo && sqlite3_cgo

package db

import _ "github.com/mattn/go-sqlite3"

// journals opened by a cgo build use the system sqlite through mattn
const (
	driverID   = "mattn/go-sqlite3"
	driverName = "sqlite3"
)
