// Package dbtest opens a migrated Postgres pool for integration tests.
// Tests using it are skipped unless POSTGRES_TEST_DSN is set.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-slot-booking/internal/db"
)

const EnvDSN = "POSTGRES_TEST_DSN"

func Pool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}

	ctx := context.Background()
	pool, err := db.ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, db.Migrate(ctx, pool))
	return pool
}

// Doctor inserts a doctor row and returns its id.
func Doctor(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO doctors (id, name, specialty) VALUES ($1, $2, $3)`,
		id, "Dr. Test "+id.String()[:8], "general")
	require.NoError(t, err)
	return id
}

// Patient inserts a patient row and returns its id.
func Patient(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO patients (id, name, email) VALUES ($1, $2, $3)`,
		id, "Patient "+id.String()[:8], id.String()[:8]+"@example.com")
	require.NoError(t, err)
	return id
}
