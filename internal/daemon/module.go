// Package daemon assembles chatstubd, the local stand-in for the chat
// service, as an fx application.
package daemon

import (
	"context"
	"path/filepath"

	"github.com/matheus3301/chatsync/internal/lock"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/remote"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Binary names the daemon in its lock and log files.
const Binary = "chatstubd"

// Params holds the daemon's resolved settings.
type Params struct {
	DataDir string
	Addr    string
	Stderr  bool
	Debug   bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideLock,
			provideDB,
			provideBroker,
			provideRelay,
			provideService,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if p.Debug {
		level = zapcore.DebugLevel
	}
	return logging.New(filepath.Join(p.DataDir, "logs", Binary+".log"), Binary,
		logging.Options{Stderr: p.Stderr, Level: level})
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring data dir lock", zap.String("dir", p.DataDir))
	l, err := lock.Acquire(p.DataDir, Binary)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return l, nil
}

// provideDB takes the lock as a parameter so the database is never opened
// by a second daemon on the same directory.
func provideDB(p Params, _ *lock.Lock, logger *zap.Logger) (*remote.DB, error) {
	dbPath := filepath.Join(p.DataDir, "chatstub.db")
	db, err := remote.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("database ready", zap.String("path", dbPath))
	return db, nil
}

func provideBroker(logger *zap.Logger) *remote.Broker {
	b := remote.NewBroker(logger.Named("broker"))
	b.Start()
	return b
}

func provideRelay(b *remote.Broker, db *remote.DB, logger *zap.Logger) (*remote.Relay, error) {
	return remote.StartRelay(b, db, logger.Named("relay"))
}

func provideService(db *remote.DB, b *remote.Broker, r *remote.Relay, logger *zap.Logger) *remote.Service {
	return remote.NewService(db, b, r, logger.Named("http"))
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, db *remote.DB, broker *remote.Broker, relay *remote.Relay, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			if err := relay.Close(); err != nil {
				logger.Warn("error closing relay", zap.Error(err))
			}
			_ = broker.Close()
			if err := db.Close(); err != nil {
				logger.Warn("error closing database", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
