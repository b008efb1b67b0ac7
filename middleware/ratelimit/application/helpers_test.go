package application

import (
	"context"
	"sync"
	"time"

	"bucket-gateway/middleware/ratelimit/domain"
)

type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeStore é um BucketStore em memória sem TTL, com ganchos para simular corridas e falhas.
type fakeStore struct {
	mu    sync.Mutex
	data  map[string]domain.Record
	reads int

	createErr error
	writeErr  error
	// onRead roda depois de cada Read, fora do lock; n é o número da leitura (1-based).
	onRead func(n int, key string)
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]domain.Record)}
}

func (s *fakeStore) TryCreate(_ context.Context, key string, seed domain.Record, _ time.Duration) (bool, error) {
	if s.createErr != nil {
		return false, s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = seed
	return true, nil
}

func (s *fakeStore) Read(_ context.Context, key string, def domain.Record) (domain.Record, error) {
	s.mu.Lock()
	s.reads++
	n := s.reads
	rec, ok := s.data[key]
	s.mu.Unlock()

	if s.onRead != nil {
		s.onRead(n, key)
	}
	if !ok {
		return def, nil
	}
	return rec, nil
}

func (s *fakeStore) Write(_ context.Context, key string, rec domain.Record, _ time.Duration) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.set(key, rec)
	return nil
}

func (s *fakeStore) CompareAndWrite(_ context.Context, key string, expected time.Time, rec domain.Record, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[key]
	if !ok || !cur.LastRefill.Equal(expected) {
		return false, nil
	}
	s.data[key] = rec
	return true, nil
}

func (s *fakeStore) set(key string, rec domain.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = rec
}

func (s *fakeStore) get(key string) (domain.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[key]
	return rec, ok
}

// plainStore esconde CompareAndWrite.
type plainStore struct{ domain.BucketStore }

type memStats struct {
	mu     sync.Mutex
	events []domain.StatsEvent
}

func (m *memStats) Record(_ context.Context, ev domain.StatsEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}
