// Package app wires the stores, locks and services both binaries share.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"signals/internal/audit"
	"signals/internal/platform/config"
	redisplatform "signals/internal/platform/redis"
	"signals/internal/sigmax/lock"
	sigmaxMetrics "signals/internal/sigmax/metrics"
	"signals/internal/sigmax/pdf"
	"signals/internal/sigmax/roundtrip"
	"signals/internal/sigmax/service"
	"signals/internal/sigmax/stuf"
	"signals/internal/sigmax/transport"
	"signals/internal/signals/store"
	"signals/migrations"
	"signals/pkg/platform/circuit"
)

// App holds the wired dependencies. DB and Redis are nil when not configured.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	DB       *sql.DB
	Redis    *redisplatform.Client
	Signals  service.SignalRepository
	Tracker  *roundtrip.Tracker
	Auditor  *audit.Publisher
	Metrics  *sigmaxMetrics.Metrics
	Service  *service.Service
	Location *time.Location
}

// Option tweaks New.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	migrate    bool
}

// WithRegisterer registers the sigmax metrics on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithoutMigrations skips applying the embedded schema on start.
func WithoutMigrations() Option {
	return func(o *options) { o.migrate = false }
}

// New connects to the configured backends and builds the sigmax service.
// Close must be called on the result.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{registerer: prometheus.DefaultRegisterer, migrate: true}
	for _, opt := range opts {
		opt(&o)
	}

	loc, err := time.LoadLocation(cfg.Sigmax.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Sigmax.Timezone, err)
	}

	a := &App{Config: cfg, Logger: logger, Location: loc}
	if err := a.connect(ctx, o.migrate); err != nil {
		_ = a.Close()
		return nil, err
	}

	locker, err := a.locker()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var (
		roundtrips roundtrip.Store = roundtrip.NewInMemory()
		auditStore audit.Store     = audit.NewInMemoryStore()
	)
	if a.DB != nil {
		a.Signals = store.NewPostgres(a.DB)
		roundtrips = roundtrip.NewPostgres(a.DB)
		auditStore = audit.NewPostgresStore(a.DB)
	} else {
		a.Signals = store.NewInMemory()
	}

	a.Metrics = sigmaxMetrics.NewWithRegisterer(o.registerer)
	a.Auditor = audit.NewPublisher(auditStore, logger)
	a.Tracker = roundtrip.NewTracker(roundtrips, locker,
		roundtrip.WithMaxRoundtrips(cfg.Sigmax.MaxRoundtrips),
		roundtrip.WithLogger(logger),
	)

	builder := stuf.NewBuilder(
		stuf.WithSender(stuf.Party{Organisatie: cfg.Sigmax.Organisation, Applicatie: cfg.Sigmax.Application}),
		stuf.WithLocation(loc),
	)
	breaker := circuit.New("sigmax",
		circuit.WithFailureThreshold(cfg.Sigmax.BreakerThreshold),
		circuit.WithCooldown(cfg.Sigmax.BreakerCooldown),
	)
	sender := transport.New(transport.Config{
		URL:                cfg.Sigmax.ServerURL,
		AuthToken:          cfg.Sigmax.AuthToken,
		Timeout:            cfg.Sigmax.Timeout,
		InsecureSkipVerify: cfg.Sigmax.InsecureSkipVerify,
	},
		transport.WithBreaker(breaker),
		transport.WithObserver(a.Metrics),
		transport.WithLogger(logger),
	)
	if !cfg.Sigmax.Configured() {
		logger.WarnContext(ctx, "sigmax endpoint not configured, outbound handoffs will fail")
	}

	a.Service = service.New(a.Signals, sender, pdf.NewRenderer(loc), a.Tracker, locker,
		service.WithLogger(logger),
		service.WithMetrics(a.Metrics),
		service.WithAuditor(a.Auditor),
		service.WithBuilder(builder),
		service.WithSendFailTimeout(cfg.Sigmax.SendFailTimeout),
	)
	return a, nil
}

func (a *App) connect(ctx context.Context, migrate bool) error {
	if a.Config.Database.URL != "" {
		db, err := openDB(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		a.DB = db
		if migrate {
			if err := migrations.Apply(ctx, db); err != nil {
				return err
			}
		}
	}

	client, err := redisplatform.New(ctx, a.Config.Redis)
	if err != nil {
		return err
	}
	a.Redis = client
	return nil
}

func (a *App) locker() (lock.Locker, error) {
	// Status updates can wait on a handoff that is sending two messages.
	wait := 2*a.Config.Sigmax.Timeout + 10*time.Second

	switch a.Config.Sigmax.LockBackend {
	case config.LockBackendMemory, "":
		return lock.NewSharded(wait), nil
	case config.LockBackendRedis:
		if a.Redis == nil {
			return nil, errors.New("SIGNAL_LOCK_BACKEND=redis requires REDIS_URL")
		}
		return lock.NewRedis(a.Redis.Client, lock.WithWaitTimeout(wait)), nil
	case config.LockBackendPostgres:
		if a.DB == nil {
			return nil, errors.New("SIGNAL_LOCK_BACKEND=postgres requires DATABASE_URL")
		}
		return lock.NewPostgresAdvisory(a.DB, wait), nil
	default:
		return nil, fmt.Errorf("unknown SIGNAL_LOCK_BACKEND %q", a.Config.Sigmax.LockBackend)
	}
}

// Health pings the configured backends.
func (a *App) Health(ctx context.Context) error {
	if a.DB != nil {
		if err := a.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases the backend connections.
func (a *App) Close() error {
	var errs []error
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}
