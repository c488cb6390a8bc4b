// Command relay runs the cross-server chat relay: websocket transport,
// channel routing engine, identity registry and the admin API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/relaycore/chatrelay/internal/boot"
	"github.com/relaycore/chatrelay/internal/config"
	"github.com/relaycore/chatrelay/internal/directory"
	"github.com/relaycore/chatrelay/internal/handlers"
	"github.com/relaycore/chatrelay/internal/identity"
	"github.com/relaycore/chatrelay/internal/logger"
	"github.com/relaycore/chatrelay/internal/membership"
	"github.com/relaycore/chatrelay/internal/permission"
	"github.com/relaycore/chatrelay/internal/routing"
	"github.com/relaycore/chatrelay/internal/server"
	"github.com/relaycore/chatrelay/internal/transport"
)

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("RELAY_CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideRegistry(lc fx.Lifecycle, log *slog.Logger, runtime *boot.RuntimeConfig) *identity.Registry {
	registry := identity.NewRegistry(log, runtime.SnapshotPath)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := registry.Restore(); err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					log.Info("no identity snapshot yet", slog.String("path", runtime.SnapshotPath))
					return nil
				}
				// A corrupt snapshot resets the registry to empty; the
				// relay still comes up, per the persistence contract.
				log.Error("identity snapshot restore failed", slog.Any("error", err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return registry.Persist()
		},
	})
	return registry
}

func provideOptions(cfg config.Config) *routing.Options {
	return routing.NewOptions(cfg.Chat)
}

func providePermissions(log *slog.Logger, cfg config.Config) *permission.StaticSource {
	return permission.NewStaticSource(log, cfg.Permissions)
}

func provideEngine(
	log *slog.Logger,
	registry *identity.Registry,
	store *membership.Store,
	dir *directory.Directory,
	perms *permission.StaticSource,
	hub *transport.Hub,
	opts *routing.Options,
) *routing.Engine {
	return routing.NewEngine(log, registry, store, dir, perms, hub, hub, opts)
}

func provideWSHandler(log *slog.Logger, hub *transport.Hub, engine *routing.Engine) *transport.WSHandler {
	return transport.NewWSHandler(log, hub, engine)
}

type serverParams struct {
	fx.In

	Logger   *slog.Logger
	Runtime  *boot.RuntimeConfig
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(p serverParams) *server.Server {
	return server.NewServer(p.Logger, p.Runtime.ServerAddr, p.Runtime.AdminToken, p.Handlers...)
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}

func main() {
	fx.New(
		fx.Provide(
			provideConfig,
			boot.ProvideRuntimeConfig,
			provideLogger,

			provideRegistry,
			membership.NewStore,
			directory.NewDirectory,
			provideOptions,
			providePermissions,
			transport.NewHub,
			provideEngine,

			provideServerHandler(provideWSHandler),
			provideServerHandler(handlers.NewAdminHandler),
			provideServerHandler(handlers.NewIdentitiesHandler),
			provideServerHandler(handlers.NewChannelsHandler),

			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}
