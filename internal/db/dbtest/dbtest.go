// Package dbtest connects tests to a disposable Postgres database named by
// POSTGRES_TEST_DSN. Tests calling NewPool are skipped when it is unset.
package dbtest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/db"
)

const EnvDSN = "POSTGRES_TEST_DSN"

// migrateLockKey serialises migrations when several test binaries share the database.
const migrateLockKey = 7219340021

// NewPool returns a pool on a migrated schema, closed when t ends. Rows are
// not truncated, so tests must use fresh provider ids.
func NewPool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set, skipping postgres test", EnvDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, db.PoolOptions{DSN: dsn, MaxConns: 40, Timezone: "UTC"})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()

	_, err = conn.Exec(ctx, `SELECT pg_advisory_lock($1)`, migrateLockKey)
	require.NoError(t, err)
	defer func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, migrateLockKey)
	}()

	_, err = db.NewMigrator(pool, db.Migrations()).Up(ctx)
	require.NoError(t, err)
	return pool
}
