// Package pgtest connects integration tests to the database named by the
// TEST_DATABASE environment variable. Tests skip when it is unset.
package pgtest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/edgeflare/restable/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

const envTestDatabase = "TEST_DATABASE"

// ConnString returns TEST_DATABASE or skips the test.
func ConnString(t testing.TB) string {
	connString := os.Getenv(envTestDatabase)
	if connString == "" {
		t.Skipf("%s not set", envTestDatabase)
	}
	return connString
}

// ParseConfig returns a test connection config with logging
func ParseConfig(t testing.TB) *pgx.ConnConfig {
	config, err := pgx.ParseConfig(ConnString(t))
	require.NoError(t, err)

	config.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
		t.Logf("PostgreSQL %s: %s", n.Severity, n.Message)
	}
	return config
}

// Connect creates a new database connection for testing
func Connect(ctx context.Context, t testing.TB) *pgx.Conn {
	conn, err := pgx.ConnectConfig(ctx, ParseConfig(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		Close(t, conn)
	})
	return conn
}

// Close safely closes a database connection
func Close(t testing.TB, conn *pgx.Conn) {
	if conn.IsClosed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Close(ctx))
}

// Sakila creates a private schema loaded with the sakila test fixture and
// returns a pool whose connections use it as search_path, together with the
// schema name. The schema is dropped when the test ends.
func Sakila(ctx context.Context, t testing.TB) (*pgxpool.Pool, string) {
	connString := ConnString(t)
	schema := "restable_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	fixture, err := testutil.ReadFixture("sakila.sql")
	require.NoError(t, err)

	admin := Connect(ctx, t)
	ident := pgx.Identifier{schema}.Sanitize()
	_, err = admin.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", ident))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := admin.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", ident)); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
	})

	_, err = admin.Exec(ctx, fmt.Sprintf("SET search_path TO %s", ident))
	require.NoError(t, err)
	// multiple statements run through the simple protocol
	_, err = admin.Exec(ctx, string(fixture), pgx.QueryExecModeSimpleProtocol)
	require.NoError(t, err)

	cfg, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool, schema
}
