package domain

import (
	"context"
	"time"
)

// Record é o estado compartilhado de um bucket (um por chave).
//
// Invariante: 0 <= Value <= Capacity. LastRefill só avança por chave; um valor
// no futuro é tratado como ErrClockRegression.
type Record struct {
	Value      float64
	LastRefill time.Time
}

// BucketStore é o contrato mínimo do cache compartilhado (Redis, memória, etc.).
//
// Todas as operações podem devolver um erro que casa com ErrStoreUnavailable.
type BucketStore interface {
	// TryCreate grava seed somente se a chave não existir. true = esta chamada criou o bucket.
	TryCreate(ctx context.Context, key string, seed Record, ttl time.Duration) (bool, error)
	// Read devolve o registro atual ou def quando a chave não existe (ou expirou).
	Read(ctx context.Context, key string, def Record) (Record, error)
	// Write sobrescreve o registro incondicionalmente e renova o TTL.
	Write(ctx context.Context, key string, rec Record, ttl time.Duration) error
}

// AtomicBucketStore é opcional: stores que conseguem um compare-and-swap real
// sobre LastRefill. Usado apenas pela estratégia opt-in de CAS.
type AtomicBucketStore interface {
	BucketStore
	// CompareAndWrite grava rec somente se o LastRefill atual for igual a expected.
	CompareAndWrite(ctx context.Context, key string, expected time.Time, rec Record, ttl time.Duration) (bool, error)
}
