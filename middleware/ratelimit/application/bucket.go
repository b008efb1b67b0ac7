package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"bucket-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Strategy define como o novo estado do bucket é persistido após uma admissão.
type Strategy int

const (
	// StrategyOptimistic relê o registro e grava só se LastRefill não mudou.
	// Não há retry: updates perdidos são aceitos.
	StrategyOptimistic Strategy = iota
	// StrategyCompareAndSwap exige um domain.AtomicBucketStore e reavalia a
	// decisão em caso de conflito, até MaxAttempts vezes.
	StrategyCompareAndSwap
)

const defaultMaxAttempts = 3

func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "optimistic":
		return StrategyOptimistic, nil
	case "cas", "compare-and-swap":
		return StrategyCompareAndSwap, nil
	}
	return 0, fmt.Errorf("unknown strategy %q (want optimistic or cas)", s)
}

func (s Strategy) String() string {
	if s == StrategyCompareAndSwap {
		return "cas"
	}
	return "optimistic"
}

// TokenBucket é o motor do algoritmo: refill linear contínuo de
// Capacity tokens por Window, estado no BucketStore compartilhado.
type TokenBucket struct {
	store    domain.BucketStore
	atomic   domain.AtomicBucketStore
	spec     domain.RateSpec
	strategy Strategy
	attempts int
	now      func() time.Time
	log      *slog.Logger

	// falhas no TryCreate podem acontecer a cada requisição durante uma queda do cache
	degradedLog *rate.Sometimes
}

type BucketOption func(*TokenBucket)

func WithStrategy(s Strategy) BucketOption {
	return func(b *TokenBucket) { b.strategy = s }
}

// WithMaxAttempts limita as reavaliações da estratégia CAS.
func WithMaxAttempts(n int) BucketOption {
	return func(b *TokenBucket) { b.attempts = n }
}

func WithClock(now func() time.Time) BucketOption {
	return func(b *TokenBucket) { b.now = now }
}

func WithLogger(l *slog.Logger) BucketOption {
	return func(b *TokenBucket) { b.log = l }
}

func NewTokenBucket(store domain.BucketStore, spec domain.RateSpec, opts ...BucketOption) (*TokenBucket, error) {
	if store == nil {
		return nil, errors.New("token bucket: store is required")
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	b := &TokenBucket{
		store:       store,
		spec:        spec,
		attempts:    defaultMaxAttempts,
		now:         time.Now,
		degradedLog: &rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = slog.New(slog.DiscardHandler)
	}
	if b.attempts <= 0 {
		b.attempts = defaultMaxAttempts
	}

	if b.strategy == StrategyCompareAndSwap {
		as, ok := store.(domain.AtomicBucketStore)
		if !ok {
			return nil, fmt.Errorf("token bucket: strategy cas requires a store with CompareAndWrite, got %T", store)
		}
		b.atomic = as
	}
	return b, nil
}

func (b *TokenBucket) Spec() domain.RateSpec { return b.spec }

// Take tenta consumir tokens do bucket em key.
//
// Erros: domain.ErrClockRegression, domain.ErrInvalidTokens e falhas do store
// (exceto no TryCreate, onde a indisponibilidade é tratada como "já existe").
func (b *TokenBucket) Take(ctx context.Context, key string, tokens int) (domain.Decision, error) {
	if tokens < 0 {
		return domain.Decision{}, fmt.Errorf("%w: got %d", domain.ErrInvalidTokens, tokens)
	}

	now := b.now()
	ttl := b.spec.Window
	seed := domain.Record{Value: float64(b.spec.Capacity), LastRefill: now}

	created, err := b.store.TryCreate(ctx, key, seed, ttl)
	if err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			return domain.Decision{}, err
		}
		b.degradedLog.Do(func() {
			b.log.WarnContext(ctx, "bucket create failed, assuming contention", "key", key, "error", err)
		})
		created = false
	}

	rec := seed
	if !created {
		rec, err = b.store.Read(ctx, key, seed)
		if err != nil {
			return domain.Decision{}, err
		}
	}

	dec, next, err := b.evaluate(rec, created, now, tokens)
	if err != nil || !dec.Allowed {
		return dec, err
	}

	if b.strategy == StrategyCompareAndSwap {
		return b.commitCAS(ctx, key, rec, next, dec, tokens)
	}

	ok, err := Optimistic(ctx, b.store, key, rec.LastRefill)
	if err != nil {
		return domain.Decision{}, err
	}
	if !ok {
		b.log.DebugContext(ctx, "bucket changed since read, write suppressed", "key", key)
		return dec, nil
	}
	if err := b.store.Write(ctx, key, next, ttl); err != nil {
		return domain.Decision{}, fmt.Errorf("persist bucket %s: %w", key, err)
	}
	dec.Committed = true
	return dec, nil
}

// commitCAS grava com compare-and-swap; em conflito relê e reavalia com um novo now.
func (b *TokenBucket) commitCAS(ctx context.Context, key string, rec, next domain.Record, dec domain.Decision, tokens int) (domain.Decision, error) {
	ttl := b.spec.Window
	for attempt := 1; ; attempt++ {
		ok, err := b.atomic.CompareAndWrite(ctx, key, rec.LastRefill, next, ttl)
		if err != nil {
			return domain.Decision{}, fmt.Errorf("persist bucket %s: %w", key, err)
		}
		if ok {
			dec.Committed = true
			return dec, nil
		}
		if attempt >= b.attempts {
			b.log.DebugContext(ctx, "bucket contended, giving up on write", "key", key, "attempts", attempt)
			return dec, nil
		}

		now := b.now()
		seed := domain.Record{Value: float64(b.spec.Capacity), LastRefill: now}
		rec, err = b.store.Read(ctx, key, seed)
		if err != nil {
			return domain.Decision{}, err
		}
		dec, next, err = b.evaluate(rec, false, now, tokens)
		if err != nil || !dec.Allowed {
			return dec, err
		}
	}
}

// evaluate aplica refill e decide. Não toca no store.
func (b *TokenBucket) evaluate(rec domain.Record, created bool, now time.Time, tokens int) (domain.Decision, domain.Record, error) {
	capacity := float64(b.spec.Capacity)
	window := b.spec.WindowSeconds()

	refill := 0.0
	if !created {
		elapsed := now.Sub(rec.LastRefill).Seconds()
		if elapsed < 0 {
			return domain.Decision{}, domain.Record{}, fmt.Errorf("%w: last refill %s is %.3fs ahead of now",
				domain.ErrClockRegression, rec.LastRefill.Format(time.RFC3339Nano), -elapsed)
		}
		refill = capacity * elapsed / window
	}
	available := math.Min(capacity, rec.Value+refill)
	want := float64(tokens)

	if want > available {
		return domain.Decision{
			Allowed:    false,
			RetryAfter: seconds(capacity * (want - available) / window),
		}, domain.Record{}, nil
	}

	remaining := available - want
	return domain.Decision{
		Allowed:   true,
		Limit:     b.spec.Capacity,
		Remaining: remaining,
		Reset:     seconds((capacity - remaining) / capacity * window),
	}, domain.Record{Value: remaining, LastRefill: now}, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
