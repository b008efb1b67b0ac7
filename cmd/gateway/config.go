package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"bucket-gateway/middleware/ratelimit/application"
	"bucket-gateway/middleware/ratelimit/domain"

	"github.com/spf13/cobra"
)

type config struct {
	listenAddr  string
	upstreamURL string

	rate      string
	tokens    int
	prefix    string
	keyHeader string
	strategy  string
	failOpen  bool
	addHeader bool

	store         string
	redisAddr     string
	redisPassword string
	redisDB       int
	redisTimeout  time.Duration

	rateStatsEnabled   bool
	rateStatsPrefix    string
	rateStatsTTL       time.Duration
	rateStatsBucket    string
	rateStatsTrackKeys bool

	logLevel  string
	logFormat string
}

// defaultConfig lê as variáveis de ambiente; flags explícitas sobrescrevem.
func defaultConfig() config {
	return config{
		listenAddr:  getenvDefault("LISTEN_ADDR", ":8080"),
		upstreamURL: os.Getenv("UPSTREAM_URL"),

		rate:      getenvDefault("RATE", "1/s"),
		tokens:    getenvIntDefault("RATE_TOKENS", 1),
		prefix:    getenvDefault("RATE_PREFIX", application.DefaultPrefix),
		keyHeader: os.Getenv("RATE_KEY_HEADER"),
		strategy:  getenvDefault("RATE_STRATEGY", "optimistic"),
		failOpen:  getenvBoolDefault("RATE_FAIL_OPEN", false),
		addHeader: getenvBoolDefault("ADD_RATELIMIT_HEADERS", true),

		store:         getenvDefault("RATE_STORE", "memory"),
		redisAddr:     getenvDefault("REDIS_ADDR", "localhost:6379"),
		redisPassword: os.Getenv("REDIS_PASSWORD"),
		redisDB:       getenvIntDefault("REDIS_DB", 0),
		redisTimeout:  getenvDurationDefault("REDIS_TIMEOUT", 100*time.Millisecond),

		rateStatsEnabled:   getenvBoolDefault("RATE_STATS_ENABLED", false),
		rateStatsPrefix:    getenvDefault("RATE_STATS_PREFIX", "ratelimit:stats"),
		rateStatsTTL:       getenvDurationDefault("RATE_STATS_TTL", 24*time.Hour),
		rateStatsBucket:    getenvDefault("RATE_STATS_BUCKET", "minute"),
		rateStatsTrackKeys: getenvBoolDefault("RATE_STATS_TRACK_KEYS", false),

		logLevel:  getenvDefault("LOG_LEVEL", "info"),
		logFormat: getenvDefault("LOG_FORMAT", "text"),
	}
}

func (c *config) addFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&c.listenAddr, "listen", c.listenAddr, "listen address (LISTEN_ADDR)")
	f.StringVar(&c.upstreamURL, "upstream", c.upstreamURL, "upstream URL to proxy to (UPSTREAM_URL)")
	f.StringVar(&c.rate, "rate", c.rate, `quota per client, e.g. "1/s", "100/10m" (RATE)`)
	f.IntVar(&c.tokens, "tokens", c.tokens, "tokens consumed per request (RATE_TOKENS)")
	f.StringVar(&c.prefix, "prefix", c.prefix, "bucket key prefix (RATE_PREFIX)")
	f.StringVar(&c.keyHeader, "key-header", c.keyHeader, "header that identifies the client, e.g. X-Api-Key (RATE_KEY_HEADER)")
	f.StringVar(&c.strategy, "strategy", c.strategy, "write strategy: optimistic or cas (RATE_STRATEGY)")
	f.BoolVar(&c.failOpen, "fail-open", c.failOpen, "serve requests when the bucket store fails (RATE_FAIL_OPEN)")
	f.BoolVar(&c.addHeader, "headers", c.addHeader, "add X-RateLimit-* headers (ADD_RATELIMIT_HEADERS)")
	f.StringVar(&c.store, "store", c.store, "bucket store: memory or redis (RATE_STORE)")
	f.StringVar(&c.redisAddr, "redis-addr", c.redisAddr, "redis address (REDIS_ADDR)")
	f.StringVar(&c.redisPassword, "redis-password", c.redisPassword, "redis password (REDIS_PASSWORD)")
	f.IntVar(&c.redisDB, "redis-db", c.redisDB, "redis database index (REDIS_DB)")
	f.DurationVar(&c.redisTimeout, "redis-timeout", c.redisTimeout, "per-operation redis timeout (REDIS_TIMEOUT)")
	f.BoolVar(&c.rateStatsEnabled, "stats", c.rateStatsEnabled, "record decision stats in redis (RATE_STATS_ENABLED)")
	f.StringVar(&c.rateStatsPrefix, "stats-prefix", c.rateStatsPrefix, "stats key prefix (RATE_STATS_PREFIX)")
	f.DurationVar(&c.rateStatsTTL, "stats-ttl", c.rateStatsTTL, "ttl of per-minute and per-key stats (RATE_STATS_TTL)")
	f.StringVar(&c.rateStatsBucket, "stats-bucket", c.rateStatsBucket, "stats time bucket: minute or none (RATE_STATS_BUCKET)")
	f.BoolVar(&c.rateStatsTrackKeys, "stats-track-keys", c.rateStatsTrackKeys, "keep per-client stats (RATE_STATS_TRACK_KEYS)")
	f.StringVar(&c.logLevel, "log-level", c.logLevel, "debug, info, warn or error (LOG_LEVEL)")
	f.StringVar(&c.logFormat, "log-format", c.logFormat, "text or json (LOG_FORMAT)")
}

// validate também devolve o que já foi interpretado, para não parsear de novo.
func (c config) validate() (domain.RateSpec, application.Strategy, error) {
	if strings.TrimSpace(c.upstreamURL) == "" {
		return domain.RateSpec{}, 0, errors.New("UPSTREAM_URL is required")
	}
	spec, err := domain.ParseRate(c.rate)
	if err != nil {
		return domain.RateSpec{}, 0, err
	}
	strategy, err := application.ParseStrategy(c.strategy)
	if err != nil {
		return domain.RateSpec{}, 0, err
	}
	if c.tokens <= 0 {
		return domain.RateSpec{}, 0, errors.New("RATE_TOKENS must be > 0")
	}
	switch c.store {
	case "memory", "redis":
	default:
		return domain.RateSpec{}, 0, fmt.Errorf("unknown store %q (want memory or redis)", c.store)
	}
	if (c.store == "redis" || c.rateStatsEnabled) && strings.TrimSpace(c.redisAddr) == "" {
		return domain.RateSpec{}, 0, errors.New("REDIS_ADDR is required for the redis store and stats")
	}
	return spec, strategy, nil
}

func (c config) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.logLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch c.logFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q (want text or json)", c.logFormat)
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
