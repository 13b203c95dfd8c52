package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/wisdom-metrics/internal/db"
	"github.com/sells-group/wisdom-metrics/internal/executor"
	"github.com/sells-group/wisdom-metrics/internal/history"
	"github.com/sells-group/wisdom-metrics/internal/resilience"
	"github.com/sells-group/wisdom-metrics/internal/store"
	"github.com/sells-group/wisdom-metrics/internal/wisdom"
)

func initPool(ctx context.Context) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return db.NewPool(ctx, cfg.Store.DatabaseURL, &db.PoolConfig{
		MaxConns:             cfg.Store.MaxConns,
		MinConns:             cfg.Store.MinConns,
		StatementTimeoutSecs: cfg.Store.StatementTimeoutSecs,
	})
}

// initTargetStore opens the target store named by store.driver. The
// postgres driver shares pool.
func initTargetStore(pool db.Pool) (store.TargetStore, error) {
	retry := resilience.FromConfig(cfg.Store.RetryAttempts, cfg.Store.RetryBackoffMs)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return st.WithRetry(retry), nil
	case "postgres":
		return store.NewPostgresFromPool(pool).WithRetry(retry), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// app bundles the services a command needs. Close releases them.
type app struct {
	pool    *pgxpool.Pool
	exec    *executor.Executor
	targets store.TargetStore
	engine  *wisdom.Engine
	history *history.Service
}

func (a *app) Close() {
	if a.targets != nil {
		_ = a.targets.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

func initApp(ctx context.Context) (*app, error) {
	pool, err := initPool(ctx)
	if err != nil {
		return nil, err
	}

	ts, err := initTargetStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	if err := ts.Migrate(ctx); err != nil {
		_ = ts.Close()
		pool.Close()
		return nil, err
	}

	exec := executor.New(pool)
	return &app{
		pool:    pool,
		exec:    exec,
		targets: ts,
		engine: wisdom.New(exec, ts, wisdom.Options{
			FanoutConcurrency: cfg.Engine.FanoutConcurrency,
			FanoutQPS:         cfg.Engine.FanoutQPS,
		}),
		history: history.New(pool, cfg.Engine.FanoutConcurrency),
	}, nil
}

func addClientFlag(cmd *cobra.Command) {
	cmd.Flags().Int64P("client", "c", 0, "client id")
	_ = cmd.MarkFlagRequired("client")
}

func clientID(cmd *cobra.Command) (int64, error) {
	id, _ := cmd.Flags().GetInt64("client")
	if id <= 0 {
		return 0, eris.Errorf("--client must be a positive id, got %d", id)
	}
	return id, nil
}
