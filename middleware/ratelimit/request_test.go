package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestFromHTTP_StripsPortFromRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://example/", nil)
	r.RemoteAddr = "10.0.0.9:5555"
	r.Header.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	got := RequestFromHTTP(r)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "10.0.0.9", got.PeerAddress)
	assert.Equal(t, "1.2.3.4, 5.6.7.8", got.ForwardedFor)
}

func TestRequestFromHTTP_RemoteAddrWithoutPort(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.RemoteAddr = "192.168.0.1"
	assert.Equal(t, "192.168.0.1", RequestFromHTTP(r).PeerAddress)

	r.RemoteAddr = ""
	assert.Equal(t, "unknown", RequestFromHTTP(r).PeerAddress)
}

func TestHeaderKeyFunc_TrimsValue(t *testing.T) {
	fn := HeaderKeyFunc("X-Client")

	r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
	r.Header.Set("X-Client", " client-123 ")

	assert.Equal(t, "client-123", fn(r))
}
