package database

import (
	"database/sql"
	"fmt"
)

// migrate runs database migrations to create the required schema
func migrate(conn *sql.DB, migrations []string) error {
	for i, migration := range migrations {
		if _, err := conn.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}

	return nil
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS tracked_doors (
    door_id INTEGER PRIMARY KEY,
    world TEXT NOT NULL,
    pos_x INTEGER NOT NULL DEFAULT 0,
    pos_y INTEGER NOT NULL DEFAULT 0,
    pos_z INTEGER NOT NULL DEFAULT 0,
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    invert_open BOOLEAN NOT NULL DEFAULT FALSE,
    stay_open INTEGER NOT NULL DEFAULT 0 CHECK (stay_open >= 0),
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);`,
	`CREATE INDEX IF NOT EXISTS idx_tracked_doors_world ON tracked_doors(world);`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS tracked_doors (
    door_id BIGINT PRIMARY KEY,
    world TEXT NOT NULL,
    pos_x INTEGER NOT NULL DEFAULT 0,
    pos_y INTEGER NOT NULL DEFAULT 0,
    pos_z INTEGER NOT NULL DEFAULT 0,
    enabled BOOLEAN NOT NULL DEFAULT TRUE,
    invert_open BOOLEAN NOT NULL DEFAULT FALSE,
    stay_open INTEGER NOT NULL DEFAULT 0 CHECK (stay_open >= 0),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`,
	`CREATE INDEX IF NOT EXISTS idx_tracked_doors_world ON tracked_doors(world);`,
}
