//go:build !sqlite3_cgo

package db

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// default builds stay cgo free with the wasm sqlite from ncruces
const (
	driverID   = "ncruces/go-sqlite3"
	driverName = "sqlite3"
)
