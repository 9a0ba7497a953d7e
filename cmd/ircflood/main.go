// Command ircflood accepts IRC clients and floods each one with synthetic channel traffic.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/vovakirdan/ircflood/internal/app"
	"github.com/vovakirdan/ircflood/internal/config"
	"github.com/vovakirdan/ircflood/internal/log"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "ircflood",
		Short:        "IRC server that floods its clients with synthetic traffic",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath, cmd.Flags())
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./ircflood.yaml or $IRCFLOOD_CONFIG_DEFAULT_PATH/ircflood.yaml)")
	addServeFlags(root.Flags())

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(configCmd())
	root.AddCommand(versionCmd())

	return root
}

func serveCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept IRC clients and flood them (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), *configPath, cmd.Flags())
		},
	}
	addServeFlags(cmd.Flags())
	return cmd
}

// addServeFlags registers one flag per config key. Defaults shown in help
// come from config.Default; a flag only wins when it is set explicitly.
func addServeFlags(f *pflag.FlagSet) {
	d := config.Default()

	f.String("host", d.Host, "listen host")
	f.IntP("port", "p", d.Port, "listen port")
	f.String("server-name", d.ServerName, "server name used as message prefix")
	f.String("status-addr", d.StatusAddr, "HTTP status endpoint address (empty disables)")
	f.String("log-level", d.LogLevel, "log level: trace, debug, info, warn, error")
	f.String("log-format", d.LogFormat, "log format: console or json")

	f.Int("max-clients", d.MaxClients, "stop after serving this many clients (0 = unlimited)")
	f.Int("max-concurrent", d.MaxConcurrent, "sessions served at once")
	f.Duration("registration-timeout", d.RegistrationTimeout, "time allowed for NICK/USER (0 disables)")
	f.Int("nick-in-use", d.NickInUse, "refuse this many NICK attempts with 433 before accepting")
	f.Duration("wait", d.Wait, "idle time between welcome and the first event")

	f.String("mode", d.Mode, "pacing mode: burst or steady")
	f.Duration("delay", d.Delay, "steady mode: interval per event")
	f.Int("batch", d.Batch, "events rendered per write")
	f.Int64("max-events", d.MaxEvents, "events per session (0 = unlimited)")
	f.Duration("duration", d.Duration, "flood time per session (0 = unlimited)")
	f.Duration("stall-check", d.StallCheck, "write deadline slice used to detect a stalled client")
	f.Duration("stall-timeout", d.StallTimeout, "drop a client stalled this long (0 = never)")

	f.Uint64("seed", d.Seed, "random seed (0 = random per session)")
	f.Int("max-users", d.MaxUsers, "virtual users per session")
	f.Int("max-channels", d.MaxChannels, "virtual channels per session")
	f.Int("max-nicks-per-channel", d.MaxNicksPerChannel, "members per virtual channel")
	f.Int("max-body-length", d.MaxBodyLength, "longest message body")
	f.String("notices", d.Notices, "notices generated: none, user, channel or both")

	f.Int("weight-join", d.Weights.Join, "relative frequency of JOIN")
	f.Int("weight-part", d.Weights.Part, "relative frequency of PART")
	f.Int("weight-quit", d.Weights.Quit, "relative frequency of QUIT")
	f.Int("weight-kick", d.Weights.Kick, "relative frequency of KICK")
	f.Int("weight-privmsg", d.Weights.Privmsg, "relative frequency of PRIVMSG")
	f.Int("weight-notice", d.Weights.Notice, "relative frequency of NOTICE")
	f.Int("weight-nick", d.Weights.Nick, "relative frequency of NICK")
	f.Int("weight-ping", d.Weights.Ping, "relative frequency of PING")

	f.String("metrics-exporter", d.Metrics.Exporter, "metrics exporter: none, stdout or otlp")
	f.String("metrics-endpoint", d.Metrics.Endpoint, "OTLP endpoint (e.g. localhost:4318)")
	f.Duration("metrics-interval", d.Metrics.Interval, "metrics export interval")
	f.Duration("shutdown-timeout", d.ShutdownTimeout, "graceful shutdown timeout")
}

func serve(parent context.Context, configPath string, flags *pflag.FlagSet) error {
	bootstrap := log.New("info", "console")
	cfg, path, err := config.Load(bootstrap, configPath, flags)
	if err != nil {
		bootstrap.Error().Err(err).Str("path", path).Msg("failed to load config")
		return err
	}
	logger := log.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, &cfg, version, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to init app")
		return err
	}

	logger.Info().
		Str("version", version).
		Str("addr", cfg.Addr()).
		Str("mode", cfg.Mode).
		Uint64("seed", cfg.Seed).
		Msg("starting ircflood")
	if err := application.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration to a YAML file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultPath()
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.WriteDefault(path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	})

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ircflood %s (commit %s, built %s)\n", version, commit, buildTime)
		},
	}
}
