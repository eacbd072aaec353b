// Package app assembles the chatsync client as an fx application: profile,
// logging, the shared store and cache, the REST and push collaborators, and
// the conversation manager on top of them.
package app

import (
	"context"
	"fmt"

	"github.com/matheus3301/chatsync/internal/api"
	"github.com/matheus3301/chatsync/internal/bus"
	"github.com/matheus3301/chatsync/internal/cache"
	"github.com/matheus3301/chatsync/internal/config"
	"github.com/matheus3301/chatsync/internal/conversation"
	"github.com/matheus3301/chatsync/internal/logging"
	"github.com/matheus3301/chatsync/internal/profile"
	"github.com/matheus3301/chatsync/internal/store"
	"github.com/matheus3301/chatsync/internal/transport"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Params selects the profile and how the binary logs.
type Params struct {
	ProfileName string
	Binary      string
	// ProfilePath overrides the profile file; empty uses the profile dir.
	ProfilePath string
	Stderr      bool
	Debug       bool
}

// Module returns the fx module for the client.
func Module(p Params) fx.Option {
	return fx.Module("chatsync",
		fx.Supply(p),
		fx.Provide(
			provideProfile,
			provideLogger,
			bus.New,
			provideStore,
			provideSummaries,
			provideAPI,
			provideDialer,
			provideManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideProfile(p Params) (*config.Profile, error) {
	path := p.ProfilePath
	if path == "" {
		path = profile.ProfilePath(p.ProfileName)
	}
	cfg, err := config.LoadProfile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", p.ProfileName, err)
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	level := zapcore.InfoLevel
	if p.Debug {
		level = zapcore.DebugLevel
	}
	return logging.New(profile.LogPath(p.ProfileName, p.Binary), p.ProfileName,
		logging.Options{Stderr: p.Stderr, Level: level})
}

func provideStore(cfg *config.Profile, b *bus.Bus) *store.Store {
	return store.New(cfg.Sync.DedupTolerance.Duration, b)
}

func provideSummaries(b *bus.Bus, logger *zap.Logger) *cache.Cache[[]store.ConversationSummary] {
	return cache.New[[]store.ConversationSummary](b, logger.Named("cache"))
}

func provideAPI(cfg *config.Profile, logger *zap.Logger) *api.Client {
	return api.New(cfg.Server.BaseURL, cfg.Identity.Token, logger.Named("api"))
}

func provideDialer(cfg *config.Profile, logger *zap.Logger) *transport.STOMPDialer {
	return transport.NewSTOMPDialer(cfg.Server.WSURL, cfg.Sync.Heartbeat.Duration, logger.Named("stomp"))
}

func provideManager(
	cfg *config.Profile,
	b *bus.Bus,
	st *store.Store,
	summaries *cache.Cache[[]store.ConversationSummary],
	client *api.Client,
	dialer *transport.STOMPDialer,
	logger *zap.Logger,
) *conversation.Manager {
	return conversation.NewManager(conversation.Deps{
		Bus:       b,
		Store:     st,
		Summaries: summaries,
		API:       client,
		Dialer:    dialer,
		Identity: conversation.Identity{
			UserID:      cfg.Identity.UserID,
			DisplayName: cfg.Identity.DisplayName,
			Role:        cfg.Identity.Role,
			Token:       cfg.Identity.Token,
		},
		PollInterval:   cfg.Sync.PollInterval.Duration,
		ReconnectDelay: cfg.Sync.ReconnectDelay.Duration,
		Logger:         logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, p Params, m *conversation.Manager, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("chatsync starting",
				zap.String("binary", p.Binary),
				zap.String("user", m.Identity().UserID))
			return nil
		},
		OnStop: func(_ context.Context) error {
			m.CloseAll()
			logger.Info("chatsync stopped")
			_ = logger.Sync()
			return nil
		},
	})
}
