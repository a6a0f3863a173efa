package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"door-opener-bridge/internal/door"
	"door-opener-bridge/internal/types"
)

// PostgresStore persists tracked doors in a shared PostgreSQL database,
// for networks running several game servers against one door set.
type PostgresStore struct {
	conn *sql.DB
}

// PostgresConfig holds PostgreSQL connection options
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int
	MaxLifetime  time.Duration
}

// NewPostgresStore connects to PostgreSQL and migrates the schema
func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	if cfg.MaxLifetime > 0 {
		conn.SetConnMaxLifetime(cfg.MaxLifetime)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(conn, postgresMigrations); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{conn: conn}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// LoadDoors returns every tracked door
func (s *PostgresStore) LoadDoors(ctx context.Context) ([]door.Record, error) {
	return loadDoors(ctx, s.conn, `
		SELECT door_id, world, pos_x, pos_y, pos_z, enabled, invert_open, stay_open
		FROM tracked_doors
		ORDER BY door_id
	`)
}

// SaveDoor upserts a tracked door
func (s *PostgresStore) SaveDoor(ctx context.Context, record door.Record) error {
	query := `
		INSERT INTO tracked_doors
			(door_id, world, pos_x, pos_y, pos_z, enabled, invert_open, stay_open, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (door_id) DO UPDATE SET
			world = EXCLUDED.world,
			pos_x = EXCLUDED.pos_x,
			pos_y = EXCLUDED.pos_y,
			pos_z = EXCLUDED.pos_z,
			enabled = EXCLUDED.enabled,
			invert_open = EXCLUDED.invert_open,
			stay_open = EXCLUDED.stay_open,
			updated_at = NOW()
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
func (s *PostgresStore) DeleteDoor(ctx context.Context, id types.DoorID) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM tracked_doors WHERE door_id = $1`, int64(id)); err != nil {
		return fmt.Errorf("failed to delete door %d: %w", id, err)
	}
	return nil
}

// Health checks the database connection health
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}
