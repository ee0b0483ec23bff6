// Package app assembles the service graph shared by the CLI commands.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/LeventeLantos/listsync/internal/api"
	"github.com/LeventeLantos/listsync/internal/cache"
	"github.com/LeventeLantos/listsync/internal/client"
	"github.com/LeventeLantos/listsync/internal/config"
	"github.com/LeventeLantos/listsync/internal/db"
	"github.com/LeventeLantos/listsync/internal/events"
	"github.com/LeventeLantos/listsync/internal/lock"
	"github.com/LeventeLantos/listsync/internal/metrics"
	"github.com/LeventeLantos/listsync/internal/repo"
	"github.com/LeventeLantos/listsync/internal/scheduler"
	"github.com/LeventeLantos/listsync/internal/service"
	"github.com/LeventeLantos/listsync/internal/validator"
)

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Store     *repo.PostgresStore
	Locker    lock.Locker
	Results   cache.ResultCache
	Syncer    *service.Syncer
	Scheduler *scheduler.Scheduler

	conn *sql.DB
	rdb  *redis.Client
}

// Open connects to Postgres and, when configured, Redis, then wires the app.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	conn, err := db.Open(ctx, cfg.Database.PostgresURL)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = conn.Close()
			_ = rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
	}

	a, err := New(cfg, logger, conn, rdb)
	if err != nil {
		_ = conn.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	return a, nil
}

// New wires the app over open connections. rdb may be nil, in which case
// locks and last results stay in process and events are dropped.
func New(cfg *config.Config, logger *zap.Logger, conn *sql.DB, rdb *redis.Client) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	store := repo.NewPostgresStore(conn, logger)

	checker := client.NewNumberCheckClient(cfg.Validator.URL, cfg.Validator.Timeout)
	numbers := validator.NewRetrying(checker, validator.Options{
		AttemptTimeout: cfg.Validator.Timeout,
		MaxAttempts:    uint(cfg.Validator.MaxAttempts),
	}, logger)

	reconciler := service.NewReconciler(store, service.NewEvaluator(logger), numbers, logger).
		WithMetrics(m)

	var (
		locker  lock.Locker
		results cache.ResultCache
		sink    events.Sink = events.NopSink{}
	)
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb, cfg.Lock.TTL, logger)
		results = cache.NewRedisCache(rdb, cfg.Redis.TTL)
		sink = events.NewRedisSink(rdb, logger)
	} else {
		locker = lock.NewKeyedMutex()
		results = cache.NewMemoryCache()
	}

	syncer := service.NewSyncer(store, reconciler, locker, logger).
		WithResults(results).
		WithEvents(sink).
		WithMetrics(m)

	sched, err := scheduler.New(cfg.Scheduler.Cron, cfg.Scheduler.Location, syncer.RunScheduledSync, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  reg,
		Metrics:   m,
		Store:     store,
		Locker:    locker,
		Results:   results,
		Syncer:    syncer,
		Scheduler: sched,
		conn:      conn,
		rdb:       rdb,
	}, nil
}

func (a *App) Handler() http.Handler {
	h := api.NewHandler(a.Scheduler, a.Syncer, a.Logger)
	return api.Router(h, a.Metrics, a.Registry)
}

// Serve starts the scheduler and the HTTP server and blocks until ctx is
// done or the server fails.
func (a *App) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.Config.Server.Address,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.Scheduler.Start()
	defer func() {
		a.Scheduler.Stop()
		a.Scheduler.Wait()
	}()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	return errors.Join(errs...)
}
