/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind           string
	jwtSecret      string
	playerTimeout  time.Duration
	port           int
	prefix         string
	profile        bool
	rateBurst      int
	rateLimit      float64
	sessionTimeout time.Duration
	tickInterval   time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.playerTimeout <= 0 || c.sessionTimeout <= 0 || c.tickInterval <= 0 {
		return errors.New("--player-timeout, --session-timeout and --tick-interval must be positive")
	}
	if c.rateLimit <= 0 || c.rateBurst < 1 {
		return fmt.Errorf("invalid rate limit (must be positive with a burst of at least 1): %v/%d", c.rateLimit, c.rateBurst)
	}
	if c.prefix != "" && !strings.HasPrefix(c.prefix, "/") {
		c.prefix = "/" + c.prefix
	}
	c.prefix = strings.TrimSuffix(c.prefix, "/")

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}

	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("PARTYLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "partyline",
		Short:         "Real-time party games over websockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}

			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: PARTYLINE_BIND)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "HMAC secret for verifying session cookies; anonymous only when unset (env: PARTYLINE_JWT_SECRET)")
	fs.DurationVar(&cfg.playerTimeout, "player-timeout", 2*time.Minute, "time a disconnected player has to reconnect (env: PARTYLINE_PLAYER_TIMEOUT)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: PARTYLINE_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: PARTYLINE_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: PARTYLINE_PROFILE)")
	fs.IntVar(&cfg.rateBurst, "rate-burst", 20, "messages a client may send in a burst (env: PARTYLINE_RATE_BURST)")
	fs.Float64Var(&cfg.rateLimit, "rate-limit", 10, "sustained messages per second allowed per client (env: PARTYLINE_RATE_LIMIT)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle rooms are closed (env: PARTYLINE_SESSION_TIMEOUT)")
	fs.DurationVar(&cfg.tickInterval, "tick-interval", 500*time.Millisecond, "how often timed game transitions are checked (env: PARTYLINE_TICK_INTERVAL)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: PARTYLINE_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: PARTYLINE_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: PARTYLINE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: PARTYLINE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("partyline v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
