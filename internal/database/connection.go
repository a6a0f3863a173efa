package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/types"
)

// SQLiteStore persists tracked doors in an embedded SQLite database
type SQLiteStore struct {
	conn *sql.DB
}

// Config holds database configuration options
type Config struct {
	DatabasePath string
	MaxOpenConns int
}

// NewSQLiteStore opens (and migrates) the database at config.DatabasePath
func NewSQLiteStore(config Config) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open SQLite connection with WAL mode
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", config.DatabasePath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	}

	s := &SQLiteStore{conn: conn}

	if err := s.configurePragmas(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to configure pragmas: %w", err)
	}

	if err := migrate(conn, sqliteMigrations); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// configurePragmas sets SQLite pragmas
func (s *SQLiteStore) configurePragmas() error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = memory",
	}

	for _, pragma := range pragmas {
		if _, err := s.conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// LoadDoors returns every tracked door
func (s *SQLiteStore) LoadDoors(ctx context.Context) ([]door.Record, error) {
	return loadDoors(ctx, s.conn, `
		SELECT door_id, world, pos_x, pos_y, pos_z, enabled, invert_open, stay_open
		FROM tracked_doors
		ORDER BY door_id
	`)
}

// SaveDoor inserts or replaces a tracked door
func (s *SQLiteStore) SaveDoor(ctx context.Context, record door.Record) error {
	query := `
		INSERT OR REPLACE INTO tracked_doors
			(door_id, world, pos_x, pos_y, pos_z, enabled, invert_open, stay_open, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	_, err := s.conn.ExecContext(ctx, query,
		int64(record.ID),
		record.World,
		record.Position.X,
		record.Position.Y,
		record.Position.Z,
		record.Enabled,
		record.InvertOpen,
		record.StayOpen,
	)
	if err != nil {
		return fmt.Errorf("failed to save door %d: %w", record.ID, err)
	}

	return nil
}

// DeleteDoor removes a tracked door
func (s *SQLiteStore) DeleteDoor(ctx context.Context, id types.DoorID) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tracked_doors WHERE door_id = ?`, int64(id)); err != nil {
		return fmt.Errorf("failed to delete door %d: %w", id, err)
	}
	return nil
}

// Health checks the database connection health
func (s *SQLiteStore) Health(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func loadDoors(ctx context.Context, conn *sql.DB, query string) ([]door.Record, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query doors: %w", err)
	}
	defer rows.Close()

	var records []door.Record
	for rows.Next() {
		var (
			r  door.Record
			id int64
		)
		if err := rows.Scan(
			&id,
			&r.World,
			&r.Position.X,
			&r.Position.Y,
			&r.Position.Z,
			&r.Enabled,
			&r.InvertOpen,
			&r.StayOpen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan door: %w", err)
		}
		r.ID = types.DoorID(id)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate doors: %w", err)
	}

	return records, nil
}
