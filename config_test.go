/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := testConfig()
		cfg.port = 8080

		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, false},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, false},
		{"port too low", func(c *Config) { c.port = 0 }, false},
		{"port too high", func(c *Config) { c.port = 65536 }, false},
		{"zero player timeout", func(c *Config) { c.playerTimeout = 0 }, false},
		{"negative tick", func(c *Config) { c.tickInterval = -1 }, false},
		{"zero rate", func(c *Config) { c.rateLimit = 0 }, false},
		{"zero burst", func(c *Config) { c.rateBurst = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfigPrefix(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.port = 8080
	cfg.prefix = "party/"

	require.NoError(t, cfg.validate())
	assert.Equal(t, "/party", cfg.prefix)
	assert.Equal(t, "http", cfg.scheme())
}

func TestCommandReadsEnvironment(t *testing.T) {
	t.Setenv("PARTYLINE_PORT", "9191")
	t.Setenv("PARTYLINE_RATE_BURST", "5")

	cfg := &Config{}
	cmd := newCmd(cfg)

	assert.Equal(t, 9191, cfg.port)
	assert.Equal(t, 5, cfg.rateBurst)
	assert.Equal(t, "0.0.0.0", cfg.bind)

	flag := cmd.Flags().Lookup("player-timeout")
	require.NotNil(t, flag)
	assert.Equal(t, "2m0s", flag.DefValue)
}
