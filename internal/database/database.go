package database

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pinnity/pinnity/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// DB holds database connections
type DB struct {
	Postgres *sqlx.DB
}

// NewDB creates new database connections using config
func NewDB(ctx context.Context, cfg *config.Config) (*DB, error) {
	// Connect to PostgreSQL
	postgres, err := sqlx.ConnectContext(ctx, "postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	// Configure connection pool
	postgres.SetMaxOpenConns(cfg.Database.MaxConns)
	postgres.SetMaxIdleConns(cfg.Database.MinConns)
	postgres.SetConnMaxLifetime(time.Hour)

	// Test PostgreSQL connection
	if err := postgres.PingContext(ctx); err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	slog.Info("connected to PostgreSQL", "host", cfg.Database.Host, "database", cfg.Database.Name)

	db := &DB{Postgres: postgres}
	if cfg.Database.Migrate {
		if err := db.Migrate(ctx); err != nil {
			postgres.Close()
			return nil, err
		}
	}
	return db, nil
}

// Migrate applies the schema. Every statement is idempotent, so it runs on
// each start.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.Postgres.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	slog.Info("database schema is up to date")
	return nil
}

// Close closes all database connections
func (db *DB) Close() error {
	if err := db.Postgres.Close(); err != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", err)
	}

	return nil
}
