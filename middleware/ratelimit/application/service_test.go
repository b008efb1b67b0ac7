package application

import (
	"context"
	"testing"
	"time"

	"bucket-gateway/middleware/ratelimit/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "OptimisticBucket:192.168.0.1:GET", Key(DefaultPrefix, "192.168.0.1", "GET"))
}

func TestService_Decide_RequiresBucket(t *testing.T) {
	_, err := Service{}.Decide(context.Background(), Request{}, 1)
	require.Error(t, err)
}

func TestService_Decide_IsolatesClients(t *testing.T) {
	clk := newManualClock()
	store := newFakeStore()
	svc := Service{Bucket: newBucket(t, store, "2/m", clk)}
	ctx := context.Background()

	a := Request{Request: domain.Request{Method: "GET", PeerAddress: "192.168.0.1"}}
	b := Request{Request: domain.Request{Method: "GET", PeerAddress: "127.0.0.1"}}

	dec, err := svc.Decide(ctx, a, 2)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
	assert.Equal(t, 0.0, dec.Remaining)

	dec, err = svc.Decide(ctx, b, 1)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 1.0, dec.Remaining)

	rec, ok := store.get("OptimisticBucket:192.168.0.1:GET")
	require.True(t, ok)
	assert.Equal(t, 0.0, rec.Value)
}

func TestService_Decide_KeysByMethod(t *testing.T) {
	clk := newManualClock()
	svc := Service{Bucket: newBucket(t, newFakeStore(), "1/s", clk), Prefix: "rl"}
	ctx := context.Background()

	get := Request{Request: domain.Request{Method: "GET", PeerAddress: "10.0.0.1"}}
	post := Request{Request: domain.Request{Method: "POST", PeerAddress: "10.0.0.1"}}

	dec, err := svc.Decide(ctx, get, 1)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	dec, err = svc.Decide(ctx, post, 1)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)

	dec, err = svc.Decide(ctx, get, 1)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestService_Decide_UsesForwardedForAndExplicitClient(t *testing.T) {
	clk := newManualClock()
	store := newFakeStore()
	svc := Service{Bucket: newBucket(t, store, "1/s", clk), Prefix: "rl"}
	ctx := context.Background()

	_, err := svc.Decide(ctx, Request{Request: domain.Request{
		Method: "GET", ForwardedFor: "1.1.1.1, 2.2.2.2", PeerAddress: "10.0.0.1",
	}}, 1)
	require.NoError(t, err)
	_, ok := store.get("rl:2.2.2.2:GET")
	assert.True(t, ok)

	_, err = svc.Decide(ctx, Request{
		Request:  domain.Request{Method: "GET", PeerAddress: "10.0.0.1"},
		ClientID: "api-key-1",
	}, 1)
	require.NoError(t, err)
	_, ok = store.get("rl:api-key-1:GET")
	assert.True(t, ok)
}

func TestService_Decide_RecordsStats(t *testing.T) {
	clk := newManualClock()
	stats := &memStats{}
	svc := Service{Bucket: newBucket(t, newFakeStore(), "1/s", clk), Stats: stats, Now: clk.Now}
	ctx := context.Background()
	req := Request{Request: domain.Request{Method: "GET", PeerAddress: "10.0.0.1"}, Path: "/test/"}

	_, err := svc.Decide(ctx, req, 1)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, req, 1)
	require.NoError(t, err)

	require.Len(t, stats.events, 2)
	assert.Equal(t, domain.OutcomeAdmitted, stats.events[0].Outcome)
	assert.False(t, stats.events[0].Suppressed)
	assert.Equal(t, domain.Key("10.0.0.1"), stats.events[0].Key)
	assert.Equal(t, "/test/", stats.events[0].Path)
	assert.Equal(t, clk.Now(), stats.events[0].At)
	assert.Equal(t, domain.OutcomeDenied, stats.events[1].Outcome)
}

func TestService_Decide_RecordsFailures(t *testing.T) {
	clk := newManualClock()
	store := newFakeStore()
	store.set("OptimisticBucket:10.0.0.1:GET", domain.Record{Value: 1, LastRefill: clk.Now().Add(time.Hour)})
	stats := &memStats{}
	svc := Service{Bucket: newBucket(t, store, "1/s", clk), Stats: stats}

	_, err := svc.Decide(context.Background(), Request{Request: domain.Request{Method: "GET", PeerAddress: "10.0.0.1"}}, 1)
	require.ErrorIs(t, err, domain.ErrClockRegression)

	require.Len(t, stats.events, 1)
	assert.Equal(t, domain.OutcomeFailed, stats.events[0].Outcome)
}
