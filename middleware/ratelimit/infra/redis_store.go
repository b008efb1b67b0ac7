package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bucket-gateway/middleware/ratelimit/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStore é um BucketStore compartilhado entre instâncias via Redis.
//
// Cada bucket é uma string JSON {"value":..,"last_refill_time":<unix nanos>} com TTL.
// TryCreate usa SET NX, Write usa SET com PX, CompareAndWrite usa WATCH/MULTI.
type RedisStore struct {
	rdb redis.UniversalClient

	prefix string
	// timeout por operação; o ctx da requisição continua valendo.
	timeout time.Duration
}

type RedisStoreOption func(*RedisStore)

// WithKeyPrefix adiciona um namespace antes da chave do bucket (ex.: "app1:").
func WithKeyPrefix(prefix string) RedisStoreOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

func WithTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) { s.timeout = d }
}

func NewRedisStore(rdb redis.UniversalClient, opts ...RedisStoreOption) *RedisStore {
	s := &RedisStore{
		rdb:     rdb,
		timeout: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type redisRecord struct {
	Value      float64 `json:"value"`
	LastRefill int64   `json:"last_refill_time"`
}

func encodeRecord(rec domain.Record) ([]byte, error) {
	return json.Marshal(redisRecord{Value: rec.Value, LastRefill: rec.LastRefill.UnixNano()})
}

func decodeRecord(raw []byte) (domain.Record, error) {
	var r redisRecord
	if err := json.Unmarshal(raw, &r); err != nil {
		return domain.Record{}, err
	}
	return domain.Record{Value: r.Value, LastRefill: time.Unix(0, r.LastRefill)}, nil
}

// Ping verifica a conexão (uso na inicialização).
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return s.unavailable("ping", "", err)
	}
	return nil
}

func (s *RedisStore) TryCreate(ctx context.Context, key string, seed domain.Record, ttl time.Duration) (bool, error) {
	payload, err := encodeRecord(seed)
	if err != nil {
		return false, fmt.Errorf("encode bucket %s: %w", key, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := s.rdb.SetNX(ctx, s.prefix+key, payload, ttl).Result()
	if err != nil {
		return false, s.unavailable("try_create", key, err)
	}
	return created, nil
}

func (s *RedisStore) Read(ctx context.Context, key string, def domain.Record) (domain.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	raw, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return def, nil
	}
	if err != nil {
		return domain.Record{}, s.unavailable("read", key, err)
	}

	rec, err := decodeRecord(raw)
	if err != nil {
		return domain.Record{}, fmt.Errorf("decode bucket %s: %w", key, err)
	}
	return rec, nil
}

func (s *RedisStore) Write(ctx context.Context, key string, rec domain.Record, ttl time.Duration) error {
	payload, err := encodeRecord(rec)
	if err != nil {
		return fmt.Errorf("encode bucket %s: %w", key, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.rdb.Set(ctx, s.prefix+key, payload, ttl).Err(); err != nil {
		return s.unavailable("write", key, err)
	}
	return nil
}

// CompareAndWrite implementa domain.AtomicBucketStore com WATCH/MULTI.
// Uma transação abortada por outro writer devolve (false, nil).
func (s *RedisStore) CompareAndWrite(ctx context.Context, key string, expected time.Time, rec domain.Record, ttl time.Duration) (bool, error) {
	payload, err := encodeRecord(rec)
	if err != nil {
		return false, fmt.Errorf("encode bucket %s: %w", key, err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	full := s.prefix + key
	swapped := false
	var decodeErr error
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, full).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		cur, err := decodeRecord(raw)
		if err != nil {
			decodeErr = err
			return nil
		}
		if !cur.LastRefill.Equal(expected) {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, full, payload, ttl)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}, full)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return false, nil
	case err != nil:
		return false, s.unavailable("compare_and_write", key, err)
	case decodeErr != nil:
		return false, fmt.Errorf("decode bucket %s: %w", key, decodeErr)
	}
	return swapped, nil
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) unavailable(op, key string, err error) error {
	return &domain.StoreError{Op: op, Key: s.prefix + key, Err: err}
}
