// utilitário pequeno para formatação rápida/consistente de valores numéricos em headers.
// Padroniza a formatação do float (strconv.FormatFloat), evitando notação científica em
// valores comuns.

package ratelimit

import (
	"math"
	"strconv"
	"time"
)

func formatInt(v int) string { return strconv.Itoa(v) }

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatSeconds escreve uma duração em segundos com até milissegundos.
func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(math.Round(d.Seconds()*1000)/1000, 'f', -1, 64)
}

// retryAfterSeconds arredonda para cima; Retry-After só aceita segundos inteiros.
func retryAfterSeconds(d time.Duration) string {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		s = 1
	}
	return formatInt(s)
}
