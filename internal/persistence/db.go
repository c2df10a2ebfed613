// Package persistence provides the SQLite recruitment journal: every
// controller event is buffered on the simulation thread and flushed in batches.
package persistence

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/patria-grande/internal/recruitment"
)

// Entry is one journaled recruitment event.
type Entry struct {
	ID           string `db:"id" json:"id"`
	Tick         uint64 `db:"tick" json:"tick"`
	Kind         string `db:"kind" json:"kind"`
	DivisionID   uint64 `db:"division_id" json:"division_id"`
	SettlementID uint64 `db:"settlement_id" json:"settlement_id,omitempty"`
	Archetype    string `db:"archetype" json:"archetype,omitempty"`
	Troops       uint32 `db:"troops" json:"troops,omitempty"`
	Description  string `db:"description" json:"description"`
	Error        string `db:"error" json:"error,omitempty"`
}

// DB wraps a SQLite connection for the recruitment journal.
type DB struct {
	conn    *sqlx.DB
	pending []Entry
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS recruitment_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		division_id INTEGER NOT NULL,
		settlement_id INTEGER NOT NULL,
		archetype TEXT NOT NULL,
		troops INTEGER NOT NULL,
		description TEXT NOT NULL,
		error TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_recruitment_events_tick ON recruitment_events(tick);
	CREATE INDEX IF NOT EXISTS idx_recruitment_events_division ON recruitment_events(division_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// OnRecruitmentEvent implements recruitment.Listener. It only buffers;
// Flush writes to disk.
func (db *DB) OnRecruitmentEvent(e recruitment.Event) {
	entry := Entry{
		ID:           uuid.NewString(),
		Tick:         e.Tick,
		Kind:         e.Kind.String(),
		DivisionID:   e.DivisionID,
		SettlementID: e.SettlementID,
		Archetype:    string(e.Archetype),
		Troops:       e.Troops,
		Description:  e.Description(),
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}
	db.pending = append(db.pending, entry)
}

// Pending returns the number of buffered entries.
func (db *DB) Pending() int {
	return len(db.pending)
}

// Flush writes buffered entries and the last processed tick in one transaction.
func (db *DB) Flush(tick uint64) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO recruitment_events
		(id, tick, kind, division_id, settlement_id, archetype, troops, description, error)
		VALUES (:id, :tick, :kind, :division_id, :settlement_id, :archetype, :troops, :description, :error)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range db.pending {
		if _, err := stmt.Exec(e); err != nil {
			return fmt.Errorf("insert event %s: %w", e.ID, err)
		}
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		"last_tick", strconv.FormatUint(tick, 10),
	); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	if len(db.pending) > 0 {
		slog.Debug("recruitment journal flushed", "entries", len(db.pending), "tick", tick)
	}
	db.pending = db.pending[:0]
	return nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// RecentEvents returns the most recent journaled events, newest first.
func (db *DB) RecentEvents(limit int) ([]Entry, error) {
	var entries []Entry
	err := db.conn.Select(&entries,
		`SELECT id, tick, kind, division_id, settlement_id, archetype, troops, description, error
		 FROM recruitment_events ORDER BY seq DESC LIMIT ?`,
		limit,
	)
	return entries, err
}

// DivisionHistory returns the journaled events for one division, oldest first.
func (db *DB) DivisionHistory(divisionID uint64) ([]Entry, error) {
	var entries []Entry
	err := db.conn.Select(&entries,
		`SELECT id, tick, kind, division_id, settlement_id, archetype, troops, description, error
		 FROM recruitment_events WHERE division_id = ? ORDER BY seq`,
		divisionID,
	)
	return entries, err
}
