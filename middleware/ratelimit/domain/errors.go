package domain

import "errors"

var (
	// ErrInvalidRateSpec indica configuração inválida; deve derrubar o processo na inicialização.
	ErrInvalidRateSpec = errors.New("invalid rate spec")

	// ErrClockRegression indica que o last_refill_time persistido está no futuro
	// em relação ao relógio local (clock skew ou configuração errada).
	ErrClockRegression = errors.New("clock regression")

	// ErrStoreUnavailable indica que o cache compartilhado não respondeu.
	ErrStoreUnavailable = errors.New("bucket store unavailable")

	// ErrInvalidTokens indica um custo negativo.
	ErrInvalidTokens = errors.New("tokens requested must be >= 0")
)

// StoreError envolve falhas de transporte do store.
//
// errors.Is(err, ErrStoreUnavailable) é verdadeiro, e Unwrap devolve a causa
// original (ex.: context.DeadlineExceeded).
type StoreError struct {
	Op  string
	Key string
	Err error
}

func (e *StoreError) Error() string {
	return "bucket store " + e.Op + " " + e.Key + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func (e *StoreError) Is(target error) bool { return target == ErrStoreUnavailable }
