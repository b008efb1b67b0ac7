package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import "time"

type Key string

// Request descreve a requisição de forma agnóstica de HTTP.
type Request struct {
	Method       string
	ForwardedFor string
	PeerAddress  string
}

// Decision é o resultado de uma tentativa de consumir tokens.
//
// Quando Allowed, Limit/Remaining/Reset carregam a telemetria da cota.
// Quando bloqueado, apenas RetryAfter tem significado.
type Decision struct {
	Allowed bool

	Limit     int
	Remaining float64
	// Reset é o tempo até o bucket voltar a ficar cheio.
	Reset time.Duration

	// RetryAfter = capacidade × (tokens pedidos − disponíveis) / janela em segundos.
	RetryAfter time.Duration

	// Committed informa se o novo estado foi persistido. Fica false quando a
	// checagem otimista detectou outra escrita e a gravação foi suprimida.
	Committed bool
}
