package ds18x

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-onewire/internal/onewire"
)

// inventoryTimeout bounds a single inventory write from the sampling path.
const inventoryTimeout = 2 * time.Second

// InventoryEntry is one row of the sensor inventory.
type InventoryEntry struct {
	Address   string     `json:"address"`
	Name      string     `json:"name"`
	Family    int        `json:"family"`
	Source    Source     `json:"source"`
	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	ReadCount int64      `json:"read_count"`
}

// Inventory records which sensors have existed and when they were last
// read. Readings themselves are not stored.
//
// Thread Safety: All methods are safe for concurrent use.
type Inventory struct {
	db *sql.DB

	logger   Logger
	loggerMu sync.RWMutex

	// Prepared statements for upserts (created once, reused)
	createStmt *sql.Stmt
	readStmt   *sql.Stmt
	stmtMu     sync.Mutex
}

// NewInventory creates an inventory on db. The sensor_inventory table must
// exist (see migrations).
func NewInventory(db *sql.DB) *Inventory {
	return &Inventory{db: db, logger: noopLogger{}}
}

// SetLogger sets the logger for the inventory.
func (inv *Inventory) SetLogger(logger Logger) {
	inv.loggerMu.Lock()
	inv.logger = logger
	inv.loggerMu.Unlock()
}

func (inv *Inventory) getLogger() Logger {
	inv.loggerMu.RLock()
	defer inv.loggerMu.RUnlock()
	return inv.logger
}

// Start prepares the upsert statements. Calling Start twice is a no-op.
func (inv *Inventory) Start() error {
	inv.stmtMu.Lock()
	defer inv.stmtMu.Unlock()

	if inv.createStmt != nil {
		return nil
	}

	createStmt, err := inv.db.Prepare(`
		INSERT INTO sensor_inventory (address, name, family, source, first_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			name = excluded.name,
			source = excluded.source
	`)
	if err != nil {
		return fmt.Errorf("preparing inventory create statement: %w", err)
	}

	readStmt, err := inv.db.Prepare(`
		INSERT INTO sensor_inventory (address, name, family, source, first_seen, last_seen, read_count)
		VALUES (?, ?, ?, ?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			name = excluded.name,
			last_seen = excluded.last_seen,
			read_count = read_count + 1
	`)
	if err != nil {
		createStmt.Close()
		return fmt.Errorf("preparing inventory read statement: %w", err)
	}

	inv.createStmt = createStmt
	inv.readStmt = readStmt
	return nil
}

// Stop releases the prepared statements. Later records are dropped.
func (inv *Inventory) Stop() {
	inv.stmtMu.Lock()
	defer inv.stmtMu.Unlock()

	if inv.createStmt != nil {
		inv.createStmt.Close()
		inv.createStmt = nil
	}
	if inv.readStmt != nil {
		inv.readStmt.Close()
		inv.readStmt = nil
	}
}

// RecordCreated upserts a newly created sensor.
func (inv *Inventory) RecordCreated(ctx context.Context, rec Record) error {
	inv.stmtMu.Lock()
	stmt := inv.createStmt
	inv.stmtMu.Unlock()
	if stmt == nil {
		return nil
	}

	_, err := stmt.ExecContext(ctx,
		rec.Address.String(),
		rec.Name,
		int(rec.Address.Family()),
		string(rec.Source),
		formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("recording sensor %s: %w", rec.Address, err)
	}
	return nil
}

// RecordReading upserts a sighting of a sensor and bumps its read count.
func (inv *Inventory) RecordReading(ctx context.Context, rec Record) error {
	inv.stmtMu.Lock()
	stmt := inv.readStmt
	inv.stmtMu.Unlock()
	if stmt == nil {
		return nil
	}

	seen := rec.UpdatedAt
	if seen.IsZero() {
		seen = time.Now()
	}
	_, err := stmt.ExecContext(ctx,
		rec.Address.String(),
		rec.Name,
		int(rec.Address.Family()),
		string(rec.Source),
		formatTime(rec.CreatedAt),
		formatTime(seen),
	)
	if err != nil {
		return fmt.Errorf("recording reading of %s: %w", rec.Address, err)
	}
	return nil
}

// ObserveCreated is a Registry create hook.
func (inv *Inventory) ObserveCreated(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), inventoryTimeout)
	defer cancel()
	if err := inv.RecordCreated(ctx, rec); err != nil {
		inv.getLogger().Error("inventory write failed", "error", err)
	}
}

// ObserveReading is a Scheduler observer.
func (inv *Inventory) ObserveReading(rec Record) {
	ctx, cancel := context.WithTimeout(context.Background(), inventoryTimeout)
	defer cancel()
	if err := inv.RecordReading(ctx, rec); err != nil {
		inv.getLogger().Error("inventory write failed", "error", err)
	}
}

// List returns every inventory entry ordered by name.
func (inv *Inventory) List(ctx context.Context) ([]InventoryEntry, error) {
	rows, err := inv.db.QueryContext(ctx, `
		SELECT address, name, family, source, first_seen, last_seen, read_count
		FROM sensor_inventory
		ORDER BY name, address
	`)
	if err != nil {
		return nil, fmt.Errorf("querying inventory: %w", err)
	}
	defer rows.Close()

	var entries []InventoryEntry
	for rows.Next() {
		e, err := scanInventoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Lookup returns the inventory entry for addr.
func (inv *Inventory) Lookup(ctx context.Context, addr onewire.Address) (InventoryEntry, bool, error) {
	row := inv.db.QueryRowContext(ctx, `
		SELECT address, name, family, source, first_seen, last_seen, read_count
		FROM sensor_inventory
		WHERE address = ?
	`, addr.String())

	e, err := scanInventoryEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return InventoryEntry{}, false, nil
	}
	if err != nil {
		return InventoryEntry{}, false, err
	}
	return e, true, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInventoryEntry(s scanner) (InventoryEntry, error) {
	var (
		e         InventoryEntry
		source    string
		firstSeen string
		lastSeen  sql.NullString
	)
	if err := s.Scan(&e.Address, &e.Name, &e.Family, &source, &firstSeen, &lastSeen, &e.ReadCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scanning inventory row: %w", err)
	}

	e.Source = Source(source)

	t, err := time.Parse(time.RFC3339Nano, firstSeen)
	if err != nil {
		return e, fmt.Errorf("parsing first_seen of %s: %w", e.Address, err)
	}
	e.FirstSeen = t

	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastSeen.String)
		if err != nil {
			return e, fmt.Errorf("parsing last_seen of %s: %w", e.Address, err)
		}
		e.LastSeen = &t
	}
	return e, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
