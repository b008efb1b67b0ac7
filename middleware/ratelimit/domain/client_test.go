package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientID(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"peer only", Request{PeerAddress: "10.0.0.9"}, "10.0.0.9"},
		{"single forwarded", Request{ForwardedFor: "1.2.3.4", PeerAddress: "10.0.0.9"}, "1.2.3.4"},
		{"last hop wins", Request{ForwardedFor: "1.2.3.4, 5.6.7.8 ", PeerAddress: "10.0.0.9"}, "5.6.7.8"},
		{"blank last hop falls back", Request{ForwardedFor: "1.2.3.4, ", PeerAddress: "10.0.0.9"}, "10.0.0.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClientID(tt.req))
		})
	}
}

func TestStoreError_MatchesUnavailableAndCause(t *testing.T) {
	err := fmt.Errorf("take: %w", &StoreError{Op: "write", Key: "k", Err: context.DeadlineExceeded})

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrClockRegression))
	assert.Contains(t, err.Error(), "write k")
}
