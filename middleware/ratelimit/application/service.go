package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bucket-gateway/middleware/ratelimit/domain"
)

const DefaultPrefix = "OptimisticBucket"

// Key monta a chave composta "prefix:client:method".
func Key(prefix, client, method string) string {
	return prefix + ":" + client + ":" + method
}

// Service é o gate: resolve o cliente, monta a chave e consulta o motor.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Bucket *TokenBucket
	Stats  domain.StatsStore
	Prefix string
	Logger *slog.Logger
	Now    func() time.Time
}

// Request carrega o descritor da requisição e, opcionalmente, um id já resolvido
// (ex.: API key vinda de header) e o path para estatísticas.
type Request struct {
	domain.Request
	ClientID string
	Path     string
}

// Decide consome tokens para a requisição e devolve a decisão.
func (s Service) Decide(ctx context.Context, req Request, tokens int) (domain.Decision, error) {
	if s.Bucket == nil {
		return domain.Decision{}, errors.New("gate: token bucket is required")
	}
	if s.Prefix == "" {
		s.Prefix = DefaultPrefix
	}

	client := req.ClientID
	if client == "" {
		client = domain.ClientID(req.Request)
	}
	key := Key(s.Prefix, client, req.Method)

	dec, err := s.Bucket.Take(ctx, key, tokens)
	s.record(ctx, req, client, dec, err)
	return dec, err
}

func (s Service) record(ctx context.Context, req Request, client string, dec domain.Decision, takeErr error) {
	if s.Stats == nil {
		return
	}

	ev := domain.StatsEvent{
		Key:     domain.Key(client),
		Outcome: domain.OutcomeDenied,
		Method:  req.Method,
		Path:    req.Path,
		At:      time.Now(),
	}
	if s.Now != nil {
		ev.At = s.Now()
	}
	switch {
	case takeErr != nil:
		ev.Outcome = domain.OutcomeFailed
	case dec.Allowed:
		ev.Outcome = domain.OutcomeAdmitted
		ev.Suppressed = !dec.Committed
	}

	if err := s.Stats.Record(ctx, ev); err != nil && s.Logger != nil {
		s.Logger.WarnContext(ctx, "rate limit stats not recorded", "error", err)
	}
}
