// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
// Exemplos:
//   - MemoryStore: BucketStore em memória com TTL por chave e janitor
//   - RedisStore: BucketStore compartilhado via github.com/redis/go-redis/v9
//   - MemoryStatsStore / RedisStatsStore: contadores de decisões do gate
package infra
