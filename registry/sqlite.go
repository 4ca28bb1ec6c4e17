package registry

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS devices (
	id         TEXT PRIMARY KEY,
	unique_id  TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

// SQLite is a Registry backed by a sqlite file, so device records survive
// daemon restarts.
type SQLite struct {
	conn    *sql.DB
	writeMu sync.Mutex // sqlite supports a single writer at a time
}

// OpenSQLite opens (creating if needed) the registry database at path.
func OpenSQLite(path string) (*SQLite, error) {
	dsn := path + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open registry database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping registry database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("configure registry database: %w", err)
	}
	if _, err := conn.Exec(sqliteSchema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create registry schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// List implements Registry.
func (s *SQLite) List(ctx context.Context) ([]Device, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, unique_id, name, created_at FROM devices ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var devices []Device
	for rows.Next() {
		var d Device
		var createdAt string
		if err := rows.Scan(&d.ID, &d.UniqueID, &d.Name, &createdAt); err != nil {
			return nil, fmt.Errorf("scan device row: %w", err)
		}
		d.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("device %s created_at: %w", d.ID, err)
		}
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// Ensure implements Registry.
func (s *SQLite) Ensure(ctx context.Context, uniqueID, name string) (Device, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	created := time.Now().UTC()
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO devices (id, unique_id, name, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (unique_id) DO UPDATE SET name = excluded.name`,
		uuid.NewString(), uniqueID, name, created.Format(time.RFC3339))
	if err != nil {
		return Device{}, fmt.Errorf("ensure device %q: %w", uniqueID, err)
	}

	var d Device
	var createdAt string
	err = s.conn.QueryRowContext(ctx,
		`SELECT id, unique_id, name, created_at FROM devices WHERE unique_id = ?`,
		uniqueID).Scan(&d.ID, &d.UniqueID, &d.Name, &createdAt)
	if err != nil {
		return Device{}, fmt.Errorf("read back device %q: %w", uniqueID, err)
	}
	d.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Device{}, fmt.Errorf("device %s created_at: %w", d.ID, err)
	}
	return d, nil
}

// Remove implements Registry.
func (s *SQLite) Remove(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.conn.ExecContext(ctx, `DELETE FROM devices WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove device %q: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove device %q: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w %q", ErrUnknownDevice, id)
	}
	return nil
}
