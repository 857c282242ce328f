// Package store persists serialized save streams into named slots backed
// by SQLite, so a game can keep multiple saves with metadata without
// inventing a directory layout.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrSlotNotFound is returned when a named slot does not exist.
var ErrSlotNotFound = errors.New("save slot not found")

// SlotInfo describes one stored save slot.
type SlotInfo struct {
	Slot      string
	Session   string
	Size      int
	CreatedAt time.Time
}

// SlotStore keeps save blobs in a SQLite database.
type SlotStore struct {
	sqlDB *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS save_slots (
	slot       TEXT PRIMARY KEY,
	session    TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	data       BLOB NOT NULL
);`

// Open opens (creating if needed) a slot store at path.
func Open(path string) (*SlotStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SlotStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *SlotStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put stores data under slot, replacing any previous save there.
func (s *SlotStore) Put(ctx context.Context, slot, session string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(slot) == "" {
		return fmt.Errorf("slot name is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO save_slots (slot, session, created_at, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			session = excluded.session,
			created_at = excluded.created_at,
			data = excluded.data`,
		slot, session, time.Now().UTC().UnixMilli(), data)
	if err != nil {
		return fmt.Errorf("put slot %q: %w", slot, err)
	}
	return nil
}

// Get returns the save data stored under slot.
func (s *SlotStore) Get(ctx context.Context, slot string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT data FROM save_slots WHERE slot = ?`, slot).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get slot %q: %w", slot, ErrSlotNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %q: %w", slot, err)
	}
	return data, nil
}

// List returns every stored slot, newest first.
func (s *SlotStore) List(ctx context.Context) ([]SlotInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
		SELECT slot, session, created_at, LENGTH(data)
		FROM save_slots ORDER BY created_at DESC, slot ASC`)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var out []SlotInfo
	for rows.Next() {
		var info SlotInfo
		var createdAt int64
		if err := rows.Scan(&info.Slot, &info.Session, &createdAt, &info.Size); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		info.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	return out, nil
}

// Delete removes a slot.
func (s *SlotStore) Delete(ctx context.Context, slot string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM save_slots WHERE slot = ?`, slot)
	if err != nil {
		return fmt.Errorf("delete slot %q: %w", slot, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete slot %q: %w", slot, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete slot %q: %w", slot, ErrSlotNotFound)
	}
	return nil
}
