package database

import (
	"fmt"
	"time"

	"door-opener-bridge/internal/config"
	"door-opener-bridge/internal/door"
)

// Open returns the door store selected by cfg.Driver
func Open(cfg config.DatabaseConfig) (door.Store, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return NewSQLiteStore(Config{
			DatabasePath: cfg.Path,
			MaxOpenConns: cfg.MaxOpenConns,
		})
	case config.DriverPostgres:
		return NewPostgresStore(PostgresConfig{
			DSN:          cfg.DSN,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxLifetime:  30 * time.Minute,
		})
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
