package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bucket-gateway/middleware/ratelimit"
	"bucket-gateway/middleware/ratelimit/infra"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Exemplo: injetando o middleware diretamente no seu webserver (sem proxy).
	// Com mais de uma instância, troque por infra.NewRedisStore.
	store := infra.NewMemoryStore()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	rate := "5/10s"
	if v := os.Getenv("RATE"); v != "" {
		rate = v
	}
	limit, err := ratelimit.Middleware(ratelimit.Options{
		Rate:                rate,
		Store:               store,
		KeyHeader:           "X-Api-Key", // ou vazio para usar IP
		AddRateLimitHeaders: true,
		Logger:              logger,
	})
	if err != nil {
		logger.Error("rate limit config error", "error", err)
		os.Exit(1)
	}

	addr := ":8081"
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		addr = v
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           limit(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("example server listening", "addr", addr, "rate", rate)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
