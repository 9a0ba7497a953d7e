package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/ircflood/internal/config"
	"github.com/vovakirdan/ircflood/internal/core"
	"github.com/vovakirdan/ircflood/internal/flood"
	"github.com/vovakirdan/ircflood/internal/metrics"
	"github.com/vovakirdan/ircflood/internal/session"
	transporthttp "github.com/vovakirdan/ircflood/internal/transport/http"
	"github.com/vovakirdan/ircflood/internal/transport/irc"
)

// App wires together the flood listener, metrics and the status endpoint.
type App struct {
	irc             *irc.Server
	status          *stdhttp.Server
	shutdownMetrics func(context.Context) error
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, version string, logger *zerolog.Logger) (*App, error) {
	mp, shutdownMetrics, err := metrics.NewProvider(ctx, cfg.Metrics, version)
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	observer, err := metrics.NewObserver(mp)
	if err != nil {
		_ = shutdownMetrics(ctx)
		return nil, fmt.Errorf("init observer: %w", err)
	}

	server := irc.NewServer(ServerConfig(cfg, version), observer, logger)

	var status *stdhttp.Server
	if cfg.StatusAddr != "" {
		status = transporthttp.NewServer(server, transporthttp.ServerConfig{
			Addr:              cfg.StatusAddr,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			Version:           version,
		}, logger)
	}

	return &App{
		irc:             server,
		status:          status,
		shutdownMetrics: shutdownMetrics,
		shutdownTimeout: cfg.ShutdownTimeout,
		log:             logger,
	}, nil
}

// ServerConfig converts loaded configuration into listener settings.
func ServerConfig(cfg *config.Config, version string) irc.Config {
	return irc.Config{
		Addr:          cfg.Addr(),
		MaxClients:    cfg.MaxClients,
		MaxConcurrent: cfg.MaxConcurrent,
		Session: session.Config{
			ServerName:          cfg.ServerName,
			Version:             version,
			NickInUse:           cfg.NickInUse,
			RegistrationTimeout: cfg.RegistrationTimeout,
			Wait:                cfg.Wait,
			Mode:                flood.Mode(cfg.Mode),
			Delay:               cfg.Delay,
			Batch:               cfg.Batch,
			MaxEvents:           cfg.MaxEvents,
			Duration:            cfg.Duration,
			StallCheck:          cfg.StallCheck,
			StallTimeout:        cfg.StallTimeout,
			Seed:                cfg.Seed,
			Population: core.PopulationConfig{
				MaxUsers:           cfg.MaxUsers,
				MaxChannels:        cfg.MaxChannels,
				MaxNicksPerChannel: cfg.MaxNicksPerChannel,
			},
			MaxBodyLength:  cfg.MaxBodyLength,
			Weights:        cfg.Weights,
			UserNotices:    cfg.UserNotices(),
			ChannelNotices: cfg.ChannelNotices(),
		},
	}
}

// Run serves IRC clients until ctx is cancelled, the client budget is spent
// or a listener fails.
func (a *App) Run(ctx context.Context) error {
	defer a.cleanup()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// The status server goes down with the listener.
		defer cancel()
		return a.irc.ListenAndServe(gctx)
	})

	if a.status != nil {
		serverErr := make(chan error, 1)
		go func() {
			a.log.Info().Str("addr", a.status.Addr).Msg("starting status server")
			if err := a.status.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
				serverErr <- err
				return
			}
			serverErr <- nil
		}()

		g.Go(func() error {
			select {
			case err := <-serverErr:
				return err
			case <-gctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
			defer cancel()

			a.log.Info().Msg("shutting down status server")
			if err := a.status.Shutdown(shutdownCtx); err != nil {
				return err
			}
			return <-serverErr
		})
	}

	return g.Wait()
}

func (a *App) cleanup() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
	defer cancel()
	if err := a.shutdownMetrics(shutdownCtx); err != nil {
		a.log.Warn().Err(err).Msg("failed to flush metrics")
	}
}
