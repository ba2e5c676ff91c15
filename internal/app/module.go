// Package app composes the chat client from its parts.
package app

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/ltakahashi/campuschat/internal/backoff"
	"github.com/ltakahashi/campuschat/internal/bus"
	"github.com/ltakahashi/campuschat/internal/config"
	"github.com/ltakahashi/campuschat/internal/creds"
	"github.com/ltakahashi/campuschat/internal/history"
	"github.com/ltakahashi/campuschat/internal/logging"
	"github.com/ltakahashi/campuschat/internal/session"
	"github.com/ltakahashi/campuschat/internal/store"
	"github.com/ltakahashi/campuschat/internal/transport"
	"github.com/ltakahashi/campuschat/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved invocation options passed to the fx module.
type Params struct {
	ConversationID string
	ConfigPath     string
}

// Module returns the fx module for the chat client, composing all
// providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("campuschat",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideTokens,
			provideDialer,
			provideCache,
			provideHistory,
			provideSession,
			tui.New,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params, cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath(), p.ConversationID)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideTokens(cfg *config.Config) creds.TokenSource {
	return creds.Env(cfg.TokenEnv)
}

func provideDialer(logger *zap.Logger) transport.Dialer {
	return transport.NewWebsocketDialer(logger)
}

func provideCache(p Params, cfg *config.Config, logger *zap.Logger, lc fx.Lifecycle) (session.Cache, error) {
	path := cfg.CachePath(p.ConversationID)
	if path == "" {
		return session.Noop{}, nil
	}

	db, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("cache migrations applied", zap.Uint("version", result.Version))
	}
	logger.Info("message cache ready", zap.String("path", path))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error { return db.Close() },
	})
	return db, nil
}

func provideHistory(cfg *config.Config, tokens creds.TokenSource, logger *zap.Logger) *history.Client {
	return history.NewClient(cfg.ServerURL, tokens, logger)
}

func provideSession(p Params, cfg *config.Config, tokens creds.TokenSource, dialer transport.Dialer, b *bus.Bus, cache session.Cache, logger *zap.Logger) *session.Session {
	return session.New(session.Config{
		ConversationID: p.ConversationID,
		BaseURL:        cfg.ServerURL,
		Tokens:         tokens,
		Dialer:         dialer,
		Policy: backoff.Policy{
			Base:        time.Duration(cfg.Reconnect.BaseMS) * time.Millisecond,
			Max:         time.Duration(cfg.Reconnect.MaxMS) * time.Millisecond,
			MaxAttempts: cfg.Reconnect.MaxAttempts,
		},
		Timers: session.Timers{
			TypingDebounce:     time.Duration(cfg.Typing.DebounceMS) * time.Millisecond,
			TypingStopDelay:    time.Duration(cfg.Typing.StopDelayMS) * time.Millisecond,
			RemoteTypingExpiry: time.Duration(cfg.Typing.ExpiryMS) * time.Millisecond,
		},
		LocalUser: session.LocalUser{ID: cfg.User.ID, DisplayName: cfg.User.DisplayName},
		Bus:       b,
		Cache:     cache,
		Logger:    logger,
	})
}

func registerLifecycle(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	p Params,
	cfg *config.Config,
	sess *session.Session,
	hist *history.Client,
	ui *tui.App,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// Seed the stream with history before going live; a failed
			// fetch degrades to a live-only session.
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
				defer cancel()

				title := "group " + p.ConversationID
				if info, err := hist.FetchGroupInfo(ctx, p.ConversationID); err == nil && info.Name != "" {
					title = info.Name
				}
				ui.SetTitle(title)

				msgs, err := hist.FetchHistory(ctx, p.ConversationID, cfg.User.ID)
				if err != nil {
					logger.Warn("history fetch failed", zap.Error(err))
				} else {
					sess.Seed(msgs)
				}

				sess.Start()
			}()

			// The UI owns the foreground; when it exits, so does the app.
			go func() {
				if err := ui.Run(); err != nil {
					logger.Error("ui terminated", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			ui.Stop()
			sess.Close()
			_ = logger.Sync()
			return nil
		},
	})
}
