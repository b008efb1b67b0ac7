package domain

import (
	"context"
	"time"
)

type Outcome string

const (
	OutcomeAdmitted Outcome = "admitted"
	OutcomeDenied   Outcome = "denied"
	OutcomeFailed   Outcome = "failed"
)

// StatsEvent representa um evento de decisão do gate.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves em uma base como Redis).
type StatsEvent struct {
	Key     Key
	Outcome Outcome
	// Suppressed marca admissões cuja gravação foi descartada pela checagem otimista.
	Suppressed bool

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do gate.
// Erros são best-effort: o gate registra e segue.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
