// Package domain define contratos e tipos de domínio para o rate limit por token bucket.
//
// Este pacote não depende de net/http nem de implementações concretas de store.
// Aqui ficam: RateSpec (parse de "N/unidade"), Record (estado persistido do bucket),
// BucketStore (contrato do cache compartilhado), Decision e os erros sentinela.
package domain
