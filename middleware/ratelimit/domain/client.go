package domain

import "strings"

// ClientID deriva o identificador do cliente.
//
// Se ForwardedFor existir, usa a última entrada (hop mais próximo), sem validação
// de confiança: assume-se um proxy confiável na frente. Caso contrário, PeerAddress.
func ClientID(req Request) string {
	if req.ForwardedFor != "" {
		parts := strings.Split(req.ForwardedFor, ",")
		if ip := strings.TrimSpace(parts[len(parts)-1]); ip != "" {
			return ip
		}
	}
	return req.PeerAddress
}
