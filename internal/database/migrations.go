package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrVehiclesTableMissing means the inventory schema has not been provisioned
var ErrVehiclesTableMissing = errors.New("vehicles table not found")

// Migrator is the subset of *pgxpool.Pool the schema step needs
type Migrator interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// RunMigrations adds the FIPE snapshot columns to the vehicles table.
// The table itself belongs to the application schema; only columns are added.
// When it does not exist ErrVehiclesTableMissing is returned and nothing is changed.
func RunMigrations(ctx context.Context, pool Migrator) error {
	// Check if table exists
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public'
			AND table_name = 'vehicles'
		)
	`).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check if vehicles table exists: %w", err)
	}

	if !exists {
		return ErrVehiclesTableMissing
	}

	columns := []struct {
		name string
		ddl  string
	}{
		{"fipe_value", `ALTER TABLE vehicles ADD COLUMN IF NOT EXISTS fipe_value NUMERIC(12,2)`},
		{"fipe_reference", `ALTER TABLE vehicles ADD COLUMN IF NOT EXISTS fipe_reference TEXT`},
		{"fipe_code", `ALTER TABLE vehicles ADD COLUMN IF NOT EXISTS fipe_code TEXT`},
		{"fipe_updated_at", `ALTER TABLE vehicles ADD COLUMN IF NOT EXISTS fipe_updated_at TIMESTAMPTZ`},
	}

	for _, c := range columns {
		if _, err := pool.Exec(ctx, c.ddl); err != nil {
			return fmt.Errorf("failed to add column %s: %w", c.name, err)
		}
	}

	return nil
}
