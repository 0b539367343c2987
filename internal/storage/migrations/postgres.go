package migrations

import (
	"context"
	"fmt"

	"swap-risk-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies the embedded schema in one round trip per
// file. Every statement is idempotent so this runs on each startup.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := scripts(PostgresFS, "postgres")
	if err != nil {
		return err
	}
	for _, f := range files {
		if _, err := pool.Exec(ctx, f.body); err != nil {
			return fmt.Errorf("apply migration %s: %w", f.name, err)
		}
	}
	return nil
}
