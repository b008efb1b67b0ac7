package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"bucket-gateway/middleware/ratelimit/application"
	"bucket-gateway/middleware/ratelimit/domain"
)

type Options struct {
	// Rate no formato "N/unidade" (ex.: "1/s", "100/10m"). Ignorado se Spec for preenchido.
	Rate string
	Spec domain.RateSpec

	Store domain.BucketStore
	Stats domain.StatsStore

	// Prefix das chaves no store. Padrão: application.DefaultPrefix.
	Prefix string
	// Tokens consumidos por requisição. Zero significa o padrão (1); para custo
	// zero use Cost.
	Tokens int
	// Cost, se definido, substitui Tokens e decide o custo de cada requisição.
	// Pode devolver 0 (sempre admite, sem consumir).
	Cost func(r *http.Request) int

	KeyFn     KeyFunc
	KeyHeader string

	Strategy     application.Strategy
	RejectStatus int

	AddRateLimitHeaders bool
	// FailOpen deixa a requisição passar quando o motor falha (store fora, clock skew).
	// Padrão: falhar a requisição.
	FailOpen bool

	Logger *slog.Logger
	Now    func() time.Time
}

// Middleware monta o rate limit HTTP. Um Rate inválido é erro de configuração:
// trate na inicialização.
func Middleware(opts Options) (func(next http.Handler) http.Handler, error) {
	spec := opts.Spec
	if spec == (domain.RateSpec{}) {
		var err error
		if spec, err = domain.ParseRate(opts.Rate); err != nil {
			return nil, err
		}
	}
	if opts.Store == nil {
		return nil, errors.New("ratelimit: store is required")
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.Tokens == 0 {
		opts.Tokens = 1
	}
	if opts.Cost == nil {
		tokens := opts.Tokens
		opts.Cost = func(*http.Request) int { return tokens }
	}
	if opts.KeyFn == nil && opts.KeyHeader != "" {
		opts.KeyFn = HeaderKeyFunc(opts.KeyHeader)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	bucketOpts := []application.BucketOption{
		application.WithStrategy(opts.Strategy),
		application.WithLogger(opts.Logger),
	}
	if opts.Now != nil {
		bucketOpts = append(bucketOpts, application.WithClock(opts.Now))
	}
	bucket, err := application.NewTokenBucket(opts.Store, spec, bucketOpts...)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: %w", err)
	}

	svc := application.Service{
		Bucket: bucket,
		Stats:  opts.Stats,
		Prefix: opts.Prefix,
		Logger: opts.Logger,
		Now:    opts.Now,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req := application.Request{Request: RequestFromHTTP(r), Path: r.URL.Path}
			if opts.KeyFn != nil {
				req.ClientID = opts.KeyFn(r)
			}

			dec, err := svc.Decide(r.Context(), req, opts.Cost(r))
			if err != nil {
				opts.Logger.ErrorContext(r.Context(), "rate limit decision failed",
					"method", r.Method, "path", r.URL.Path, "error", err)
				if opts.FailOpen {
					next.ServeHTTP(w, r)
					return
				}
				status := http.StatusInternalServerError
				if errors.Is(err, domain.ErrStoreUnavailable) {
					status = http.StatusServiceUnavailable
				}
				http.Error(w, http.StatusText(status), status)
				return
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
				w.Header().Set("X-RateLimit-Retry-After", formatSeconds(dec.RetryAfter))
				http.Error(w, "Rate limit exceeded", opts.RejectStatus)
				return
			}

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatFloat(dec.Remaining))
				w.Header().Set("X-RateLimit-Reset", formatSeconds(dec.Reset))
			}
			next.ServeHTTP(w, r)
		})
	}, nil
}
