// Package daemon composes the chatty daemon with fx: storage, the control
// loop, accounts and their backends, event ingestion and the gRPC surface.
package daemon

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/matheus3301/chatty/internal/account"
	"github.com/matheus3301/chatty/internal/bus"
	"github.com/matheus3301/chatty/internal/config"
	"github.com/matheus3301/chatty/internal/identity"
	"github.com/matheus3301/chatty/internal/lock"
	"github.com/matheus3301/chatty/internal/logging"
	"github.com/matheus3301/chatty/internal/loop"
	"github.com/matheus3301/chatty/internal/phone"
	"github.com/matheus3301/chatty/internal/profile"
	"github.com/matheus3301/chatty/internal/store"
	intsync "github.com/matheus3301/chatty/internal/sync"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Paths   profile.Paths
	// Config overrides reading config.toml when set.
	Config *config.Config
	// Sessions overrides how backend sessions are created when set.
	Sessions SessionFactory
	Logging  logging.Options
}

// normalizerCacheSize bounds the memo of normalized phone numbers.
const normalizerCacheSize = 4096

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLoop,
			provideLock,
			provideStore,
			provideHistory,
			provideCredentials,
			provideMatcher,
			provideSessionFactory,
			provideRegistry,
			provideSyncEngine,
			NewServer,
			NewMonitor,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if p.Config != nil {
		return p.Config, nil
	}
	return config.LoadOrDefault(profile.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(p.Paths.Log(), p.Profile, p.Logging)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLoop(logger *zap.Logger) *loop.Loop {
	return loop.New(logger.Named("loop"))
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := p.Paths.EnsureDir(); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(p.Paths.Lock())
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

// provideStore depends on the lock so that the database is only opened by
// the daemon that owns the profile.
func provideStore(p Params, _ *lock.Lock, logger *zap.Logger) (*store.DB, error) {
	dbPath := p.Paths.AppDB()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("from", result.From), zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideHistory(db *store.DB) *store.History {
	return store.NewHistory(db)
}

func provideCredentials(db *store.DB) *store.Credentials {
	return store.NewCredentials(db)
}

func provideMatcher(cfg *config.Config) *identity.Matcher {
	region := cfg.CountryCode
	if region == "" {
		region = phone.RegionForIMSI(cfg.SIMIMSI)
	}
	return identity.NewMatcher(phone.NewNormalizer(normalizerCacheSize), region)
}

func provideSyncEngine(b *bus.Bus, l *loop.Loop, reg *account.Registry, logger *zap.Logger) *intsync.Engine {
	return intsync.NewEngine(b, l, reg, logger.Named("sync"))
}

type lifecycleDeps struct {
	fx.In

	Lock     *lock.Lock
	DB       *store.DB
	Loop     *loop.Loop
	Registry *account.Registry
	Engine   *intsync.Engine
	Monitor  *Monitor
	Server   *Server
	Logger   *zap.Logger
}

func registerLifecycle(lc fx.Lifecycle, d lifecycleDeps) {
	runCtx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				defer close(loopDone)
				d.Loop.Run(runCtx)
			}()

			d.Monitor.Start(runCtx, d.Registry)
			// Backend events flow from here on; sessions only connect below.
			d.Engine.Start(runCtx)

			go func() {
				if err := d.Server.Start(); err != nil {
					d.Logger.Error("gRPC server error", zap.Error(err))
				}
			}()

			d.Loop.Post(func() {
				for _, a := range d.Registry.Accounts() {
					a.Load(runCtx, func(err error) {
						if err != nil {
							d.Logger.Error("load account", zap.String("account", a.ID()), zap.Error(err))
						}
						a.Connect(runCtx)
					})
				}
			})
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Engine.Stop()
			cancel()
			<-loopDone

			err := d.Registry.Close(ctx)
			d.Monitor.Stop()
			d.Server.Stop(ctx)
			if cerr := d.DB.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("close store: %w", cerr))
			}
			if lerr := d.Lock.Release(); lerr != nil {
				err = multierr.Append(err, fmt.Errorf("release lock: %w", lerr))
			}
			if err != nil {
				d.Logger.Warn("daemon stopped with errors", zap.Error(err))
			} else {
				d.Logger.Info("daemon stopped")
			}
			_ = d.Logger.Sync()
			return err
		},
	})
}
