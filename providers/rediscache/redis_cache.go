// Package rediscache wraps a SuggestionProvider with a distributed,
// single-flight Redis cache. At most one worker recomputes a given cache
// key at a time; everyone else sees a miss with an empty result until the
// winner's write lands.
//
// Grounded on original_source/merino-cache/src/redis/mod.rs's Suggester:
// the lock protocol, TTL-repair-on-read, and detached background writes
// are reproduced command-for-command, adapted to yacache's connection
// setup and error-wrapping style.
package rediscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/yalogger"
	"github.com/mozilla-services/merino/errs"
	"github.com/mozilla-services/merino/provider"
	"github.com/redis/go-redis/v9"
)

// cacheCheckResult is the outcome of a cache read, mirroring the three
// cases the original's CacheCheckResult enum distinguishes: a real hit,
// a clean miss, and a read error that should be treated as a miss rather
// than surfaced to the caller.
type cacheCheckResult struct {
	response provider.SuggestionResponse
	hit      bool
	errAsMiss bool
}

// Provider caches an inner SuggestionProvider's responses in Redis,
// coordinating recomputation across processes via simpleLock.
type Provider struct {
	name             string
	inner            provider.SuggestionProvider
	client           *redis.Client
	lock             *simpleLock
	defaultTTL       time.Duration
	defaultLockWait  time.Duration
	log              yalogger.Logger
}

// Config controls how long cache entries and locks live by default.
type Config struct {
	DefaultTTL       time.Duration
	DefaultLockWait  time.Duration
}

// New wraps inner with a Redis-backed cache using an already-connected
// client (obtained via yacache.NewRedisClient or equivalent).
func New(inner provider.SuggestionProvider, client *redis.Client, cfg Config, log yalogger.Logger) *Provider {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 5 * time.Minute
	}

	if cfg.DefaultLockWait <= 0 {
		cfg.DefaultLockWait = 3 * time.Second
	}

	return &Provider{
		name:            "RedisCache(" + inner.Name() + ")",
		inner:           inner,
		client:          client,
		lock:            &simpleLock{client: client},
		defaultTTL:      cfg.DefaultTTL,
		defaultLockWait: cfg.DefaultLockWait,
		log:             log,
	}
}

// Name returns "RedisCache(<inner name>)".
func (p *Provider) Name() string {
	return p.name
}

// IsNull delegates to the inner provider.
func (p *Provider) IsNull() bool {
	return p.inner.IsNull()
}

// CacheInputs delegates to the inner provider.
func (p *Provider) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	p.inner.CacheInputs(req, sink)
}

// CacheKey delegates to the inner provider's own key.
func (p *Provider) CacheKey(req *provider.SuggestionRequest) string {
	return p.inner.CacheKey(req)
}

// getKey reads key from Redis, repairing a missing TTL and treating
// deserialization failures and network errors alike as misses.
func (p *Provider) getKey(ctx context.Context, key string) (cacheCheckResult, yaerrors.Error) {
	pipe := p.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.TTL(ctx, key)

	_, err := pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		p.logWarn("cache read error, treating as miss: %v", err)

		return cacheCheckResult{errAsMiss: true}, nil
	}

	raw, err := getCmd.Result()
	if err == redis.Nil {
		return cacheCheckResult{}, nil
	}

	if err != nil {
		p.logWarn("cache read error, treating as miss: %v", err)

		return cacheCheckResult{errAsMiss: true}, nil
	}

	suggestions, decodeErr := decodeSuggestions(raw)
	if decodeErr != nil {
		p.logWarn("cached value not of expected type, deleting: %v", decodeErr)
		p.queueDeleteKey(key)

		return cacheCheckResult{errAsMiss: true}, nil
	}

	// go-redis reports the -1/-2 sentinels as raw durations, not seconds.
	ttlVal := ttlCmd.Val()
	seconds := int64(ttlVal / time.Second)

	if ttlVal < 0 {
		seconds = int64(ttlVal)
	}

	ttl := parseTTL(seconds)

	var effectiveTTL time.Duration

	switch {
	case ttl.keyDoesNotExist:
		p.logWarn("cache provided a suggestion but claims the key does not exist for TTL determination")

		effectiveTTL = p.defaultTTL
	case ttl.keyHasNoTTL:
		p.logWarn("value in cache without TTL, setting default TTL")
		p.queueSetKeyTTL(key, p.defaultTTL)

		effectiveTTL = p.defaultTTL
	default:
		effectiveTTL = time.Duration(ttl.seconds) * time.Second
	}

	resp := provider.NewSuggestionResponse(suggestions).
		WithCacheStatus(provider.CacheStatusHit).
		WithCacheTTL(effectiveTTL)

	return cacheCheckResult{response: resp, hit: true}, nil
}

// Suggest serves a hit directly, otherwise attempts to acquire the lock
// and recompute; a caller that loses the race for the lock gets an empty
// miss response rather than blocking on the winner.
func (p *Provider) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	key := p.CacheKey(req)

	cached, err := p.getKey(ctx, key)
	if err != nil {
		return provider.SuggestionResponse{}, err
	}

	if cached.hit {
		return cached.response, nil
	}

	locked, err := p.lock.isLocked(ctx, key)
	if err != nil {
		return provider.SuggestionResponse{}, err
	}

	if locked {
		return provider.NewSuggestionResponse(nil).WithCacheStatus(provider.CacheStatusMiss), nil
	}

	token, err := p.lock.acquire(ctx, key, p.defaultLockWait)
	if err != nil {
		return provider.SuggestionResponse{}, err
	}

	if token == "" {
		return provider.NewSuggestionResponse(nil).WithCacheStatus(provider.CacheStatusMiss), nil
	}

	resp, err := p.inner.Suggest(ctx, req)
	if err != nil {
		return provider.SuggestionResponse{}, err
	}

	resp = resp.WithCacheTTL(p.defaultTTL)

	p.queueStoreKey(key, resp.Suggestions, token, p.defaultTTL)

	if cached.errAsMiss {
		return resp.WithCacheStatus(provider.CacheStatusError), nil
	}

	return resp.WithCacheStatus(provider.CacheStatusMiss), nil
}

// queueStoreKey writes the computed result in a detached goroutine, so
// the request path never waits on the write landing.
func (p *Provider) queueStoreKey(key string, suggestions []provider.Suggestion, token string, ttl time.Duration) {
	go func() {
		encoded, err := encodeSuggestions(suggestions)
		if err != nil {
			p.logWarn("failed to encode suggestions for cache storage: %v", err)

			return
		}

		if releaseErr := p.lock.release(context.Background(), key, token, encoded, ttl); releaseErr != nil {
			p.logWarn("failed to store cache entry for %q: %v", key, releaseErr)
		}
	}()
}

// queueDeleteKey removes a corrupt entry in a detached goroutine.
func (p *Provider) queueDeleteKey(key string) {
	go func() {
		if err := p.client.Del(context.Background(), key).Err(); err != nil {
			p.logWarn("failed to delete cache key %q: %v", key, err)
		}
	}()
}

// queueSetKeyTTL repairs a TTL-less entry in a detached goroutine.
func (p *Provider) queueSetKeyTTL(key string, ttl time.Duration) {
	go func() {
		if err := p.client.Expire(context.Background(), key, ttl).Err(); err != nil {
			p.logWarn("failed to set TTL for cache key %q: %v", key, err)
		}
	}()
}

func (p *Provider) logWarn(format string, args ...any) {
	if p.log == nil {
		return
	}

	p.log.WithField("provider", p.name).Warnf(format, args...)
}

// Reconfigure rebuilds the wrapper via makeFresh; the Redis connection
// itself is owned by the caller that constructs Provider instances.
func (p *Provider) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	return makeFresh(ctx, newConfig)
}
