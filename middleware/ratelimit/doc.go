// Package ratelimit fornece o adapter HTTP (net/http) para o rate limit por token bucket
// com estado em um cache compartilhado.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: motor do token bucket, checagem otimista e gate, sem net/http
//   - infra: stores concretos (memória, Redis) e estatísticas
//   - ratelimit (este pacote): middleware HTTP + extração do cliente + tradução para status/headers
//
// Fluxo no gateway:
//
//  1. Extrai o cliente (header de chave, X-Forwarded-For ou RemoteAddr)
//  2. Chama a camada application para obter a decisão
//  3. Se bloqueado, responde 429 com Retry-After
//  4. Se permitido, chama o próximo handler (ex: reverse proxy) com X-RateLimit-*
//
// A concorrência entre workers é best-effort: a checagem otimista reduz, mas não
// elimina, updates perdidos. Sob contenção o limite pode ser levemente excedido.
package ratelimit
