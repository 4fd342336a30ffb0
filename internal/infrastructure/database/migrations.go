package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

// migrationSuffix marks the files Migrate applies. Anything else in the
// filesystem, down migrations included, is ignored.
const migrationSuffix = ".up.sql"

// ErrMigrationModified means a migration file no longer matches the checksum
// recorded when it was applied. The schema cannot be trusted to match.
var ErrMigrationModified = errors.New("database: applied migration was modified")

// Migration is one file named YYYYMMDD_HHMMSS_description.up.sql.
type Migration struct {
	Version  string
	Name     string
	SQL      string
	Checksum string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   string
	Name      string
	Checksum  string
	AppliedAt time.Time
}

// MigrationStatus compares a migration set with the database.
type MigrationStatus struct {
	Applied []MigrationRecord
	Pending []Migration
	// Unknown lists applied versions absent from the set, which happens
	// after running an older binary against a newer database.
	Unknown []string
}

// Version returns the newest applied version, or "" on a fresh database.
func (s MigrationStatus) Version() string {
	if len(s.Applied) == 0 {
		return ""
	}
	return s.Applied[len(s.Applied)-1].Version
}

const createMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    checksum   TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`

// Migrate applies the pending migrations of fsys in version order, each in
// its own transaction. It stops at the first failure, keeping what was
// already committed, and refuses to run at all when an applied migration
// has been edited since.
func (db *DB) Migrate(ctx context.Context, fsys fs.FS) error {
	status, err := db.MigrationStatus(ctx, fsys)
	if err != nil {
		return err
	}
	for _, m := range status.Pending {
		if err := db.apply(ctx, m); err != nil {
			return fmt.Errorf("migration %s (%s): %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// MigrationStatus reports which migrations of fsys are applied and which
// are pending. A nil fsys counts as an empty set.
func (db *DB) MigrationStatus(ctx context.Context, fsys fs.FS) (MigrationStatus, error) {
	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		return MigrationStatus{}, fmt.Errorf("creating schema_migrations: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return MigrationStatus{}, err
	}
	set, err := LoadMigrations(fsys)
	if err != nil {
		return MigrationStatus{}, err
	}

	status := MigrationStatus{Applied: applied}
	byVersion := make(map[string]MigrationRecord, len(applied))
	for _, r := range applied {
		byVersion[r.Version] = r
	}
	known := make(map[string]bool, len(set))
	for _, m := range set {
		known[m.Version] = true
		r, done := byVersion[m.Version]
		switch {
		case !done:
			status.Pending = append(status.Pending, m)
		case r.Checksum != m.Checksum:
			return status, fmt.Errorf("%w: %s (%s)", ErrMigrationModified, m.Version, m.Name)
		}
	}
	for _, r := range applied {
		if !known[r.Version] {
			status.Unknown = append(status.Unknown, r.Version)
		}
	}
	return status, nil
}

func (db *DB) appliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT version, name, checksum, applied_at FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("reading schema_migrations: %w", err)
	}
	defer rows.Close()

	var out []MigrationRecord
	for rows.Next() {
		var r MigrationRecord
		var appliedAt string
		if err := rows.Scan(&r.Version, &r.Name, &r.Checksum, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		r.AppliedAt, _ = time.Parse(time.RFC3339, appliedAt) //nolint:errcheck // written by apply
		out = append(out, r)
	}
	return out, rows.Err()
}

// apply runs one migration and records it atomically.
func (db *DB) apply(ctx context.Context, m Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, name, checksum, applied_at) VALUES (?, ?, ?, ?)",
		m.Version, m.Name, m.Checksum, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// LoadMigrations reads the *.up.sql files at the root of fsys, oldest first.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("listing migrations: %w", err)
	}

	var set []Migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		version, name, ok := parseMigrationFilename(e.Name())
		if !ok {
			continue
		}
		data, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(data)
		set = append(set, Migration{
			Version:  version,
			Name:     name,
			SQL:      string(data),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(set, func(i, j int) bool { return set[i].Version < set[j].Version })
	return set, nil
}

// parseMigrationFilename splits "20261019_120000_sensor_inventory.up.sql"
// into version "20261019_120000" and name "sensor_inventory". A file with
// no description is named after its version.
func parseMigrationFilename(filename string) (version, name string, ok bool) {
	base, found := strings.CutSuffix(filename, migrationSuffix)
	if !found {
		return "", "", false
	}
	date, rest, found := strings.Cut(base, "_")
	if !found || date == "" {
		return "", "", false
	}
	clock, desc, _ := strings.Cut(rest, "_")
	if clock == "" {
		return "", "", false
	}

	version = date + "_" + clock
	if desc == "" {
		desc = version
	}
	return version, desc, true
}
