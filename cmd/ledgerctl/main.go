// Package main - ledgerctl, административная утилита леджера наград.
//
// Утилита:
//   - применяет миграции и загружает стартовый каталог
//   - выполняет операции леджера (миссии, магазин, профиль, рейтинг)
//   - управляет событиями-множителями и сбросом сезона
//   - выгружает пользователей в CSV
//
// Запуск:
//
//	ledgerctl [-timeout 30s] <command> [flags] [args]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/alem-rewards/config"
	"github.com/alem-hub/alem-rewards/internal/application"
	"github.com/alem-hub/alem-rewards/internal/application/eventhandler"
	"github.com/alem-hub/alem-rewards/internal/application/query"
	"github.com/alem-hub/alem-rewards/internal/domain/ledger"
	"github.com/alem-hub/alem-rewards/internal/domain/shared"
	"github.com/alem-hub/alem-rewards/internal/infrastructure/messaging"
	"github.com/alem-hub/alem-rewards/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/alem-rewards/internal/infrastructure/persistence/postgres"
	redisstore "github.com/alem-hub/alem-rewards/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/alem-rewards/pkg/circuitbreaker"
	"github.com/alem-hub/alem-rewards/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerctl: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// run загружает конфигурацию, собирает зависимости и выполняет команду.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ledgerctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	timeout := fs.Duration("timeout", 30*time.Second, "deadline for the whole command")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}
	if fs.NArg() == 0 {
		printUsage(stderr)
		return usageError{errors.New("no command given")}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 1. Load configuration
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Setup logger
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    stderr,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    logger.Format(cfg.Observability.LogFormat),
		AddSource: cfg.Observability.AddSource,
		Service:   cfg.App.Name,
	})
	slog.SetDefault(log)

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Wire dependencies
	// ─────────────────────────────────────────────────────────────────────────
	a, err := bootstrap(ctx, cfg, log, stdout, stderr)
	if err != nil {
		return err
	}
	defer a.Close()

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Execute
	// ─────────────────────────────────────────────────────────────────────────
	return a.execute(ctx, fs.Args())
}

// app держит собранные зависимости одного запуска.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	out    io.Writer
	errOut io.Writer

	core       *application.Core
	migrator   *postgres.Migrator
	dispatcher *messaging.Dispatcher
	audit      *eventhandler.AuditLog

	closers []func() error
}

// bootstrap собирает хранилище, шину событий, read model рейтинга и Core.
func bootstrap(ctx context.Context, cfg *config.Config, log *slog.Logger, stdout, stderr io.Writer) (*app, error) {
	a := &app{cfg: cfg, log: log, out: stdout, errOut: stderr}

	// Store
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	// Redis is optional: without it rankings are read from the store.
	cache := a.openCache(ctx)

	// Event bus
	var bus shared.EventBus
	if cache != nil && cfg.Redis.PublishEvents {
		rbus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisstore.NewPubSub(cache),
			LocalBusConfig: messaging.InMemoryEventBusConfig{AsyncMode: false, Logger: log},
			Logger:         log,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to start redis event bus: %w", err)
		}
		a.closers = append(a.closers, rbus.Close)
		bus = rbus
	} else {
		local := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{AsyncMode: false, Logger: log})
		a.closers = append(a.closers, local.Close)
		bus = local
	}

	a.dispatcher, err = messaging.NewDispatcher(messaging.DispatcherConfig{Bus: bus, Logger: log})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.dispatcher.Use(messaging.RecoveryMiddleware(log))
	a.dispatcher.Use(messaging.LoggingMiddleware(log))

	// Subscribers
	a.audit = eventhandler.NewAuditLog(log, slog.LevelInfo)
	if err := a.audit.Subscribe(a.dispatcher); err != nil {
		a.Close()
		return nil, err
	}

	var ranking query.RankingCache
	if cache != nil {
		breaker := circuitbreaker.ReadModelBreaker("ranking-cache", func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		})
		rc := redisstore.NewRankingCache(cache, cfg.Redis.RankingTTL, log).WithBreaker(breaker)
		if err := rc.Subscribe(a.dispatcher); err != nil {
			a.Close()
			return nil, err
		}
		ranking = rc
	}

	// Core
	levels, err := cfg.LevelTable()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.core, err = application.New(application.Config{
		Store:     store,
		Levels:    levels,
		Publisher: bus,
		Ranking:   ranking,
		Logger:    log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) openStore(ctx context.Context) (ledger.Store, error) {
	if a.cfg.Database.Store == config.StoreMemory {
		a.log.Warn("using in-memory store, state is lost on exit")
		return memory.New(a.log), nil
	}

	db := a.cfg.Database
	pgCfg := postgres.DefaultConfig(db.URL)
	pgCfg.MaxConns = int32(db.MaxOpenConns)
	pgCfg.MinConns = int32(db.MinConns)
	pgCfg.MaxConnLifetime = db.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = db.ConnMaxIdleTime
	pgCfg.ConnectTimeout = db.ConnectTimeout

	conn, err := postgres.NewConnection(ctx, pgCfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	a.migrator = postgres.NewMigrator(conn)
	if db.AutoMigrate {
		n, err := a.migrator.Migrate(ctx)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.log.Info("migrations applied", "count", n)
	}

	return postgres.NewStore(conn, a.log), nil
}

// openCache returns nil when Redis is disabled or unreachable.
func (a *app) openCache(ctx context.Context) *redisstore.Cache {
	rc := a.cfg.Redis
	if rc.Disabled {
		return nil
	}

	cfg := redisstore.DefaultConfig()
	cfg.URL = rc.URL
	cfg.Host = rc.Host
	cfg.Port = rc.Port
	cfg.Password = rc.Password
	cfg.DB = rc.DB
	cfg.PoolSize = rc.PoolSize
	cfg.MinIdleConns = rc.MinIdleConns
	cfg.DialTimeout = rc.DialTimeout
	cfg.ReadTimeout = rc.ReadTimeout
	cfg.WriteTimeout = rc.WriteTimeout
	cfg.KeyPrefix = rc.KeyPrefix

	cache, err := redisstore.NewCache(ctx, cfg)
	if err != nil {
		a.log.Warn("redis unavailable, rankings are read from the store", logger.Err(err))
		return nil
	}
	a.closers = append(a.closers, cache.Close)
	return cache
}

// Close releases everything in reverse order of acquisition.
func (a *app) Close() {
	if stats := a.dispatcherStats(); stats.DeadLetters > 0 {
		a.log.Warn("events left in dead letter queue", "count", stats.DeadLetters)
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", logger.Err(err))
		}
	}
	a.closers = nil
}

func (a *app) dispatcherStats() messaging.DispatcherStats {
	if a.dispatcher == nil {
		return messaging.DispatcherStats{}
	}
	return a.dispatcher.Stats()
}

// ══════════════════════════════════════════════════════════════════════════════
// EXIT CODES
// ══════════════════════════════════════════════════════════════════════════════

type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var ue usageError
	switch {
	case errors.As(err, &ue), errors.Is(err, shared.ErrValidation):
		return 2
	case errors.Is(err, shared.ErrEligibility):
		return 3
	case errors.Is(err, shared.ErrConsistency), errors.Is(err, shared.ErrStorage):
		return 4
	default:
		return 1
	}
}
