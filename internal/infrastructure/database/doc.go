// Package database is the bridge's SQLite store.
//
// It holds the sensor inventory only: which devices have been seen, under
// which name, and when. Temperature readings never touch the disk.
//
// Migrations are forward-only *.up.sql files passed in as an fs.FS. Each
// applied file is recorded with its SHA-256 checksum, and Migrate refuses to
// run if an applied file has since been edited.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS()); err != nil {
//	    return err
//	}
package database
