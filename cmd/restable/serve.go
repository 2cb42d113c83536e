package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/edgeflare/restable/pkg/catalog"
	"github.com/edgeflare/restable/pkg/catalog/sakila"
	mw "github.com/edgeflare/restable/pkg/httputil/middleware"
	"github.com/edgeflare/restable/pkg/metrics"
	pg "github.com/edgeflare/restable/pkg/pgx"
	"github.com/edgeflare/restable/pkg/pgx/schema"
	"github.com/edgeflare/restable/pkg/rest"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Connects to PostgreSQL and serves every catalog entity on its collection and item paths`,
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringP("rest.listenAddr", "l", "", "REST server listen address")
	f.String("rest.baseURL", "", "Base URL for API endpoints")
	f.StringP("db.connString", "c", "", "PostgreSQL connection string")
	f.String("metrics.addr", "", "Prometheus metrics listen address (disabled when empty)")
	f.Bool("rest.verifyCatalog", false, "Check the catalog against the database before serving")
}

// applyFlags lets explicitly set flags win over file and environment.
func applyFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	if f.Changed("rest.listenAddr") {
		cfg.REST.ListenAddr, _ = f.GetString("rest.listenAddr")
	}
	if f.Changed("rest.baseURL") {
		cfg.REST.BaseURL, _ = f.GetString("rest.baseURL")
	}
	if f.Changed("db.connString") {
		cfg.DB.ConnString, _ = f.GetString("db.connString")
	}
	if f.Changed("metrics.addr") {
		cfg.Metrics.Addr, _ = f.GetString("metrics.addr")
	}
	if f.Changed("rest.verifyCatalog") {
		cfg.REST.VerifyCatalog, _ = f.GetBool("rest.verifyCatalog")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	applyFlags(cmd)

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	if cfg.File != "" {
		logger.Info("using config file", zap.String("file", cfg.File))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, closePool, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closePool()

	cat, err := sakila.New()
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}

	if cfg.REST.VerifyCatalog {
		problems, err := verify(ctx, pool, cat)
		if err != nil {
			return err
		}
		for _, p := range problems {
			logger.Warn("catalog mismatch", zap.String("entity", p.Entity), zap.String("field", p.Field), zap.String("problem", p.Message), zap.Bool("warning", p.Warning))
		}
		if err := schema.Err(problems); err != nil {
			return err
		}
	}

	var wg sync.WaitGroup
	if cfg.Metrics.Addr != "" {
		metrics.StartPrometheusServer(ctx, &wg, &metrics.PromServerOpts{Addr: cfg.Metrics.Addr, Logger: logger})
	}

	server := rest.NewServer(pool, cat,
		rest.WithLogger(logger),
		rest.WithBaseURL(cfg.REST.BaseURL),
		rest.WithSchema(cfg.DB.Schema),
		rest.WithPageSize(cfg.REST.PageSize, cfg.REST.MaxPageSize),
		rest.WithCORS(corsOptions(cfg.REST.AllowedOrigins)),
		rest.WithObserver(metrics.Observe),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.REST.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("server error", zap.Error(err))
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.REST.ShutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("server shutdown", zap.Error(shutdownErr))
	}
	wg.Wait()

	logger.Info("server stopped")
	return err
}

// connect opens the pool, retrying until the database answers or the ping
// timeout expires.
func connect(ctx context.Context) (*pgxpool.Pool, func(), error) {
	connString, err := cfg.DB.URL()
	if err != nil {
		return nil, nil, err
	}

	pool, err := pg.Connect(ctx, pg.PoolConfig{ConnString: connString, PingTimeout: cfg.DB.PingTimeout})
	if err != nil {
		return nil, nil, err
	}
	return pool, pool.Close, nil
}

func verify(ctx context.Context, pool *pgxpool.Pool, cat *catalog.Catalog) ([]schema.Problem, error) {
	tables, err := schema.Load(ctx, pool, cfg.DB.Schema)
	if err != nil {
		return nil, fmt.Errorf("load database schema: %w", err)
	}
	return schema.Verify(cat, tables), nil
}

func corsOptions(origins []string) *mw.CORSOptions {
	if len(origins) == 0 {
		return nil
	}
	opts := &mw.CORSOptions{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Accept", "Origin", mw.RequestIDHeader},
		ExposedHeaders: []string{"Allow", mw.RequestIDHeader},
	}
	// browsers reject credentials with a wildcard origin
	opts.AllowCredentials = len(origins) != 1 || origins[0] != "*"
	return opts
}
