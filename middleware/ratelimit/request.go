package ratelimit

import (
	"net"
	"net/http"
	"strings"

	"bucket-gateway/middleware/ratelimit/domain"
)

// KeyFunc devolve um id de cliente explícito. String vazia = resolução padrão
// (X-Forwarded-For, depois RemoteAddr).
type KeyFunc func(r *http.Request) string

// RequestFromHTTP monta o descritor agnóstico de HTTP usado pelo gate.
func RequestFromHTTP(r *http.Request) domain.Request {
	return domain.Request{
		Method:       r.Method,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		PeerAddress:  peerAddress(r.RemoteAddr),
	}
}

func peerAddress(remote string) string {
	remote = strings.TrimSpace(remote)
	host, _, err := net.SplitHostPort(remote)
	if err == nil && host != "" {
		return host
	}
	if remote != "" {
		return remote
	}
	return "unknown"
}

// HeaderKeyFunc usa o valor de um header (ex.: X-Api-Key) como id do cliente, quando presente.
func HeaderKeyFunc(header string) KeyFunc {
	return func(r *http.Request) string {
		return strings.TrimSpace(r.Header.Get(header))
	}
}
