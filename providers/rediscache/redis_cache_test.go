package rediscache_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/alicebob/miniredis/v2"
	"github.com/mozilla-services/merino/provider"
	"github.com/mozilla-services/merino/providers/rediscache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	calls int
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) IsNull() bool { return false }

func (s *stubProvider) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	provider.DefaultCacheInputs(req, sink)
}

func (s *stubProvider) CacheKey(req *provider.SuggestionRequest) string {
	return provider.CacheKey(s.Name(), req, s.CacheInputs)
}

func (s *stubProvider) Suggest(
	_ context.Context,
	_ *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	s.calls++

	return provider.NewSuggestionResponse([]provider.Suggestion{{Title: "result"}}), nil
}

func (s *stubProvider) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	return makeFresh(ctx, newConfig)
}

func setup(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client
}

func TestRedisCacheMissThenHit(t *testing.T) {
	t.Parallel()

	client := setup(t)
	inner := &stubProvider{}
	cache := rediscache.New(inner, client, rediscache.Config{DefaultTTL: time.Minute}, nil)

	req := &provider.SuggestionRequest{Query: "fire"}

	first, err := cache.Suggest(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, provider.CacheStatusMiss, first.CacheStatus)
	assert.Equal(t, 1, inner.calls)

	// the write is queued on a detached goroutine; give it a moment to land
	assert.Eventually(t, func() bool {
		second, err := cache.Suggest(context.Background(), req)

		return err == nil && second.CacheStatus == provider.CacheStatusHit
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, inner.calls, "a hit must not call through to inner again")
}

func TestRedisCacheNameWrapsInner(t *testing.T) {
	t.Parallel()

	client := setup(t)
	inner := &stubProvider{}
	cache := rediscache.New(inner, client, rediscache.Config{}, nil)

	assert.Equal(t, "RedisCache(stub)", cache.Name())
}
