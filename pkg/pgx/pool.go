package pgx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultPingTimeout is how long Connect keeps retrying an unreachable server.
const DefaultPingTimeout = 30 * time.Second

// ErrNoConnConfig is returned by Connect when neither Config nor ConnString is set.
var ErrNoConnConfig = errors.New("either Config or ConnString must be provided")

// PoolConfig describes the pool opened by Connect.
type PoolConfig struct {
	Config     *pgxpool.Config // takes precedence over ConnString
	ConnString string
	// PingTimeout bounds the retries of the initial ping. Defaults to
	// DefaultPingTimeout.
	PingTimeout time.Duration
}

// Connect opens a pool and waits until the database answers a ping. The pool
// is closed again when it never does.
func Connect(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	var err error

	switch {
	case cfg.Config != nil:
		pool, err = pgxpool.NewWithConfig(ctx, cfg.Config)
	case cfg.ConnString != "":
		pool, err = pgxpool.New(ctx, cfg.ConnString)
	default:
		return nil, fmt.Errorf("pgx: %w", ErrNoConnConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("pgx: creating pool: %w", err)
	}

	if err := ping(ctx, pool, cfg.PingTimeout); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgx: ping connection: %w", err)
	}
	return pool, nil
}

// ping retries with exponential backoff so that the server may start before
// the database accepts connections.
func ping(ctx context.Context, pool *pgxpool.Pool, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultPingTimeout
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = timeout

	return backoff.Retry(func() error {
		return pool.Ping(ctx)
	}, backoff.WithContext(b, ctx))
}
