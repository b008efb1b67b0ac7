// Package application contém os casos de uso do rate limit: o motor do token bucket
// (TokenBucket), a checagem otimista (Optimistic) e o gate (Service).
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, req, 1) retorna uma Decision (admit/deny + telemetria).
package application
