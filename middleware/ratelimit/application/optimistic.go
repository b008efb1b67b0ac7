package application

import (
	"context"
	"time"

	"bucket-gateway/middleware/ratelimit/domain"
)

// Optimistic relê o registro e confirma que o LastRefill ainda é o observado.
//
// É um detector de conflito best-effort: sem loop e sem CAS atômico. Duas
// requisições com o mesmo snapshot podem passar e a segunda escrita vence.
func Optimistic(ctx context.Context, store domain.BucketStore, key string, lastRefill time.Time) (bool, error) {
	// zero value como default: ausência nunca confirma
	cur, err := store.Read(ctx, key, domain.Record{})
	if err != nil {
		return false, err
	}
	if cur.LastRefill.IsZero() {
		return false, nil
	}
	return cur.LastRefill.Equal(lastRefill), nil
}
