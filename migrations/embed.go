// Package migrations holds the SQLite schema of the sensor inventory.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS returns the migration files, ready for database.DB.Migrate.
func FS() fs.FS {
	return files
}
