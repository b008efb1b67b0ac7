package infra

import (
	"context"
	"sync"
	"time"

	"bucket-gateway/middleware/ratelimit/domain"
)

// MemoryStore é um BucketStore em memória com expiração por chave e limpeza periódica.
//
// Serve para testes e para um único processo; não coordena múltiplas instâncias.
type MemoryStore struct {
	mu           sync.Mutex
	entries      map[string]memoryEntry
	now          func() time.Time
	cleanupEvery time.Duration
}

type memoryEntry struct {
	rec       domain.Record
	expiresAt time.Time
}

type MemoryStoreOption func(*MemoryStore)

func WithCleanupEvery(d time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.cleanupEvery = d }
}

// WithNow injeta o relógio usado para expiração (testes).
func WithNow(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:      make(map[string]memoryEntry),
		now:          time.Now,
		cleanupEvery: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) CleanupEvery() time.Duration { return s.cleanupEvery }

// lookup deve ser chamado com s.mu travado.
func (s *MemoryStore) lookup(key string) (domain.Record, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return domain.Record{}, false
	}
	if !s.now().Before(ent.expiresAt) {
		delete(s.entries, key)
		return domain.Record{}, false
	}
	return ent.rec, true
}

func (s *MemoryStore) put(key string, rec domain.Record, ttl time.Duration) {
	s.entries[key] = memoryEntry{rec: rec, expiresAt: s.now().Add(ttl)}
}

func (s *MemoryStore) TryCreate(_ context.Context, key string, seed domain.Record, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.put(key, seed, ttl)
	return true, nil
}

func (s *MemoryStore) Read(_ context.Context, key string, def domain.Record) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.lookup(key); ok {
		return rec, nil
	}
	return def, nil
}

func (s *MemoryStore) Write(_ context.Context, key string, rec domain.Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.put(key, rec, ttl)
	return nil
}

// CompareAndWrite implementa domain.AtomicBucketStore.
func (s *MemoryStore) CompareAndWrite(_ context.Context, key string, expected time.Time, rec domain.Record, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.lookup(key)
	if !ok || !cur.LastRefill.Equal(expected) {
		return false, nil
	}
	s.put(key, rec, ttl)
	return true, nil
}

// Len devolve a quantidade de buckets ainda não removidos (inclui expirados ainda não limpos).
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Cleanup remove buckets expirados.
func (s *MemoryStore) Cleanup() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, ent := range s.entries {
		if !now.Before(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// StartJanitor inicia uma goroutine que limpa buckets expirados periodicamente.
// Pare cancelando o contexto.
func (s *MemoryStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(s.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
