package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bucket-gateway/middleware/ratelimit"
	"bucket-gateway/middleware/ratelimit/domain"
	"bucket-gateway/middleware/ratelimit/infra"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := defaultConfig()

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Reverse proxy with a per-client token bucket shared through Redis",
		Long: `gateway proxies requests to an upstream and enforces one quota per client
(X-Forwarded-For last hop or peer address, per HTTP method). Bucket state lives in
a TTL store (memory or redis) so several gateway instances share the same limit.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
	cfg.addFlags(cmd)
	return cmd
}

func run(ctx context.Context, cfg config) error {
	spec, strategy, err := cfg.validate()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	logger, err := cfg.logger()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	target, err := url.Parse(cfg.upstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.ErrorContext(r.Context(), "proxy error", "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	var rdb *redis.Client
	if cfg.store == "redis" || cfg.rateStatsEnabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		defer func() { _ = rdb.Close() }()
	}

	var store domain.BucketStore
	switch cfg.store {
	case "redis":
		rs := infra.NewRedisStore(rdb, infra.WithTimeout(cfg.redisTimeout))
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rs.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping error: %w", err)
		}
		store = rs
	default:
		ms := infra.NewMemoryStore()
		ms.StartJanitor(ctx)
		store = ms
	}

	var stats domain.StatsStore
	if cfg.rateStatsEnabled {
		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.rateStatsPrefix),
			infra.WithStatsTTL(cfg.rateStatsTTL),
			infra.WithStatsBucket(cfg.rateStatsBucket),
			infra.WithStatsTrackKeys(cfg.rateStatsTrackKeys),
		)
	}

	limit, err := ratelimit.Middleware(ratelimit.Options{
		Spec:                spec,
		Store:               store,
		Stats:               stats,
		Prefix:              cfg.prefix,
		Tokens:              cfg.tokens,
		KeyHeader:           cfg.keyHeader,
		Strategy:            strategy,
		FailOpen:            cfg.failOpen,
		AddRateLimitHeaders: cfg.addHeader,
		Logger:              logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           limit(proxy),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("gateway listening", "addr", cfg.listenAddr, "upstream", target.String())
	logger.Info("rate limit",
		slog.String("rate", spec.String()),
		slog.Int("tokens", cfg.tokens),
		slog.String("store", cfg.store),
		slog.String("strategy", strategy.String()),
		slog.Bool("failOpen", cfg.failOpen),
		slog.String("keyHeader", cfg.keyHeader),
	)
	logger.Info("rate stats", "enabled", cfg.rateStatsEnabled, "bucket", cfg.rateStatsBucket,
		"ttl", cfg.rateStatsTTL, "trackKeys", cfg.rateStatsTrackKeys)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
