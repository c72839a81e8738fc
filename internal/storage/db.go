package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Drivers registered for both supported backends.
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// OpenConfig holds connection settings for Open.
type OpenConfig struct {
	Driver          string // sqlite or postgres
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens a database connection and verifies it with a ping.
func Open(ctx context.Context, cfg OpenConfig) (*sql.DB, error) {
	driverName := cfg.Driver
	if driverName == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// Schema returns the DDL statements for the given driver.
func Schema(driver string) []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if driver == "postgres" {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS floats (
			id %s,
			wmo_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'active',
			institution TEXT NOT NULL DEFAULT '',
			platform_type TEXT NOT NULL DEFAULT '',
			project_name TEXT NOT NULL DEFAULT '',
			pi_name TEXT NOT NULL DEFAULT '',
			deployment_lat DOUBLE PRECISION NOT NULL,
			deployment_lon DOUBLE PRECISION NOT NULL,
			deployment_date TIMESTAMP NOT NULL,
			last_update TIMESTAMP NOT NULL
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS profiles (
			id %s,
			float_id BIGINT NOT NULL REFERENCES floats(id) ON DELETE CASCADE,
			cycle_number INTEGER NOT NULL,
			timestamp TIMESTAMP NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			direction TEXT NOT NULL DEFAULT 'A',
			data_mode TEXT NOT NULL DEFAULT 'R'
		)`, serial),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS measurements (
			id %s,
			profile_id BIGINT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
			pressure DOUBLE PRECISION NOT NULL,
			depth DOUBLE PRECISION,
			temperature DOUBLE PRECISION,
			salinity DOUBLE PRECISION,
			dissolved_oxygen DOUBLE PRECISION,
			ph DOUBLE PRECISION,
			nitrate DOUBLE PRECISION,
			chlorophyll DOUBLE PRECISION,
			measurement_order INTEGER NOT NULL DEFAULT 0
		)`, serial),
		`CREATE INDEX IF NOT EXISTS idx_profiles_float_id ON profiles(float_id)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_timestamp ON profiles(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_profiles_position ON profiles(longitude, latitude)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_profile_id ON measurements(profile_id)`,
	}
}

// EnsureSchema creates the tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db DB, driver string) error {
	for _, stmt := range Schema(driver) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
