package main

import (
	"errors"
	"testing"
	"time"

	"bucket-gateway/middleware/ratelimit/application"
	"bucket-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_ReadsEnvironment(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "http://upstream:8081")
	t.Setenv("RATE", "100/10m")
	t.Setenv("RATE_STORE", "redis")
	t.Setenv("REDIS_TIMEOUT", "250ms")
	t.Setenv("RATE_FAIL_OPEN", "true")
	t.Setenv("RATE_TOKENS", "not-a-number")

	cfg := defaultConfig()
	assert.Equal(t, "http://upstream:8081", cfg.upstreamURL)
	assert.Equal(t, "100/10m", cfg.rate)
	assert.Equal(t, "redis", cfg.store)
	assert.Equal(t, 250*time.Millisecond, cfg.redisTimeout)
	assert.True(t, cfg.failOpen)
	assert.Equal(t, 1, cfg.tokens, "invalid values fall back to the default")
	assert.Equal(t, application.DefaultPrefix, cfg.prefix)

	spec, strategy, err := cfg.validate()
	require.NoError(t, err)
	assert.Equal(t, domain.RateSpec{Capacity: 100, Window: 10 * time.Minute}, spec)
	assert.Equal(t, application.StrategyOptimistic, strategy)
}

func TestRootCmd_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("RATE", "1/s")

	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--rate", "5/h", "--strategy", "cas"}))

	rate, err := cmd.Flags().GetString("rate")
	require.NoError(t, err)
	assert.Equal(t, "5/h", rate)
	strategy, err := cmd.Flags().GetString("strategy")
	require.NoError(t, err)
	assert.Equal(t, "cas", strategy)
}

func TestConfigValidate(t *testing.T) {
	valid := func() config {
		c := defaultConfig()
		c.upstreamURL = "http://upstream"
		return c
	}

	tests := []struct {
		name   string
		mutate func(*config)
		is     error
	}{
		{"missing upstream", func(c *config) { c.upstreamURL = "" }, nil},
		{"bad rate", func(c *config) { c.rate = "0/s" }, domain.ErrInvalidRateSpec},
		{"bad strategy", func(c *config) { c.strategy = "lock" }, nil},
		{"bad tokens", func(c *config) { c.tokens = 0 }, nil},
		{"bad store", func(c *config) { c.store = "memcached" }, nil},
		{"stats without redis", func(c *config) { c.rateStatsEnabled = true; c.redisAddr = " " }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			_, _, err := c.validate()
			require.Error(t, err)
			if tt.is != nil {
				assert.True(t, errors.Is(err, tt.is))
			}
		})
	}
}

func TestConfigLogger(t *testing.T) {
	c := defaultConfig()
	c.logFormat = "json"
	c.logLevel = "debug"
	_, err := c.logger()
	require.NoError(t, err)

	c.logLevel = "loud"
	_, err = c.logger()
	require.Error(t, err)

	c.logLevel = "info"
	c.logFormat = "xml"
	_, err = c.logger()
	require.Error(t, err)
}
