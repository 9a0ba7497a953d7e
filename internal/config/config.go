package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/vovakirdan/ircflood/internal/core"
	"github.com/vovakirdan/ircflood/internal/metrics"
)

// Notice modes.
const (
	NoticesNone    = "none"
	NoticesUser    = "user"
	NoticesChannel = "channel"
	NoticesBoth    = "both"
)

// Config holds server configuration values.
type Config struct {
	Host              string        `mapstructure:"host" yaml:"host"`
	Port              int           `mapstructure:"port" yaml:"port"`
	ServerName        string        `mapstructure:"server_name" yaml:"server_name"`
	StatusAddr        string        `mapstructure:"status_addr" yaml:"status_addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	MaxClients          int           `mapstructure:"max_clients" yaml:"max_clients"`
	MaxConcurrent       int           `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	RegistrationTimeout time.Duration `mapstructure:"registration_timeout" yaml:"registration_timeout"`
	NickInUse           int           `mapstructure:"nick_in_use" yaml:"nick_in_use"`
	Wait                time.Duration `mapstructure:"wait" yaml:"wait"`

	Mode         string        `mapstructure:"mode" yaml:"mode"`
	Delay        time.Duration `mapstructure:"delay" yaml:"delay"`
	Batch        int           `mapstructure:"batch" yaml:"batch"`
	MaxEvents    int64         `mapstructure:"max_events" yaml:"max_events"`
	Duration     time.Duration `mapstructure:"duration" yaml:"duration"`
	StallCheck   time.Duration `mapstructure:"stall_check" yaml:"stall_check"`
	StallTimeout time.Duration `mapstructure:"stall_timeout" yaml:"stall_timeout"`

	Seed               uint64       `mapstructure:"seed" yaml:"seed"`
	MaxUsers           int          `mapstructure:"max_users" yaml:"max_users"`
	MaxChannels        int          `mapstructure:"max_channels" yaml:"max_channels"`
	MaxNicksPerChannel int          `mapstructure:"max_nicks_per_channel" yaml:"max_nicks_per_channel"`
	MaxBodyLength      int          `mapstructure:"max_body_length" yaml:"max_body_length"`
	Notices            string       `mapstructure:"notices" yaml:"notices"`
	Weights            core.Weights `mapstructure:"weights" yaml:"weights"`

	Metrics metrics.Config `mapstructure:"metrics" yaml:"metrics"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Port:              7777,
		ServerName:        "ircflood",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",

		MaxConcurrent:       1,
		RegistrationTimeout: 30 * time.Second,

		Mode:       "burst",
		Delay:      time.Millisecond,
		Batch:      10,
		StallCheck: time.Second,

		MaxUsers:           500,
		MaxChannels:        5,
		MaxNicksPerChannel: 100,
		MaxBodyLength:      400,
		Notices:            NoticesBoth,
		Weights:            core.DefaultWeights(),

		Metrics: metrics.Config{
			Exporter: metrics.ExporterNone,
			Interval: 10 * time.Second,
		},
	}
}

// Addr returns the IRC listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UserNotices reports whether notices to the client are generated.
func (c Config) UserNotices() bool {
	return c.Notices == NoticesUser || c.Notices == NoticesBoth
}

// ChannelNotices reports whether channel notices are generated.
func (c Config) ChannelNotices() bool {
	return c.Notices == NoticesChannel || c.Notices == NoticesBoth
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Port >= 0 && c.Port <= 65535, "port %d out of range", c.Port)
	check(c.ServerName != "", "server_name must not be empty")
	check(c.LogFormat == "console" || c.LogFormat == "json", "log_format %q must be console or json", c.LogFormat)
	check(c.MaxClients >= 0, "max_clients must not be negative")
	check(c.MaxConcurrent >= 1, "max_concurrent must be at least 1")
	check(c.NickInUse >= 0, "nick_in_use must not be negative")
	check(c.Mode == "burst" || c.Mode == "steady", "mode %q must be burst or steady", c.Mode)
	check(c.Mode != "steady" || c.Delay > 0, "steady mode needs a positive delay")
	check(c.Batch >= 1, "batch must be at least 1")
	check(c.MaxEvents >= 0, "max_events must not be negative")
	check(c.MaxUsers >= 1, "max_users must be at least 1")
	check(c.MaxChannels >= 1, "max_channels must be at least 1")
	check(c.MaxNicksPerChannel >= 1, "max_nicks_per_channel must be at least 1")
	check(c.MaxBodyLength >= 0, "max_body_length must not be negative")

	for name, d := range map[string]time.Duration{
		"registration_timeout": c.RegistrationTimeout,
		"wait":                 c.Wait,
		"delay":                c.Delay,
		"duration":             c.Duration,
		"stall_check":          c.StallCheck,
		"stall_timeout":        c.StallTimeout,
		"shutdown_timeout":     c.ShutdownTimeout,
	} {
		check(d >= 0, "%s must not be negative", name)
	}

	switch c.Notices {
	case NoticesNone, NoticesUser, NoticesChannel, NoticesBoth:
	default:
		errs = append(errs, fmt.Errorf("notices %q must be none, user, channel or both", c.Notices))
	}

	w := c.Weights
	check(w.Join >= 0 && w.Part >= 0 && w.Quit >= 0 && w.Kick >= 0 &&
		w.Privmsg >= 0 && w.Notice >= 0 && w.Nick >= 0 && w.Ping >= 0, "weights must not be negative")
	check(w.Total() > 0, "weights must not all be zero")

	switch c.Metrics.Exporter {
	case metrics.ExporterNone, metrics.ExporterStdout, metrics.ExporterOTLP:
	default:
		errs = append(errs, fmt.Errorf("metrics.exporter %q must be none, stdout or otlp", c.Metrics.Exporter))
	}

	return errors.Join(errs...)
}
