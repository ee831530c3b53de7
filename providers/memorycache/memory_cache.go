// Package memorycache wraps a SuggestionProvider with an in-process,
// TTL-aware, deduplicating cache. Responses that hash identically across
// different cache keys share one stored copy, the same way the Remote
// Settings suggester's keyword index dedupes by content.
//
// The background expiry sweeper is grounded on yacache/memory.go's
// weak.Pointer cleanup goroutine: it holds only a weak reference to the
// provider so the provider's normal garbage collection is not pinned by
// its own housekeeping goroutine.
package memorycache

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"time"
	"weak"

	"github.com/mozilla-services/merino/yaerrors"
	"github.com/mozilla-services/merino/yalogger"
	"github.com/mozilla-services/merino/dedupedmap"
	"github.com/mozilla-services/merino/provider"
)

// entryMeta is the metadata kept alongside each pointer entry: the
// absolute expiry time for the cache key that produced it.
type entryMeta struct {
	expiresAt time.Time
}

// Provider caches an inner SuggestionProvider's responses, keyed by
// CacheKey, deduplicated by response content hash.
type Provider struct {
	name   string
	inner  provider.SuggestionProvider
	log    yalogger.Logger
	ttlCap time.Duration

	data *dedupedmap.DedupedMap[string, entryMeta, uint64, provider.SuggestionResponse]

	ticker *time.Ticker
	done   chan struct{}
}

// New wraps inner with a memory cache. sweepInterval controls how often
// the background goroutine scans for expired entries; ttlCap bounds how
// long any entry is kept even when the inner response requests a longer
// CacheTTL (zero means no cap).
func New(
	inner provider.SuggestionProvider,
	sweepInterval time.Duration,
	ttlCap time.Duration,
	log yalogger.Logger,
) *Provider {
	p := &Provider{
		name:   inner.Name() + ":memory",
		inner:  inner,
		log:    log,
		ttlCap: ttlCap,
		data:   dedupedmap.New[string, entryMeta, uint64, provider.SuggestionResponse](),
		ticker: time.NewTicker(sweepInterval),
		done:   make(chan struct{}),
	}

	go sweep(weak.Make(p), sweepInterval, p.done)

	return p
}

// sweep runs in its own goroutine, periodically dropping expired cache
// entries. It exits as soon as the provider it watches is collected.
func sweep(pointer weak.Pointer[Provider], interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p := pointer.Value()
			if p == nil {
				return
			}

			now := time.Now()

			p.data.Retain(func(_ string, meta entryMeta) dedupedmap.RetainDecision {
				if now.After(meta.expiresAt) {
					return dedupedmap.RetainDrop
				}

				return dedupedmap.RetainKeep
			})
		case <-done:
			return
		}
	}
}

// Close stops the background sweeper.
func (p *Provider) Close() {
	close(p.done)
	p.ticker.Stop()
}

// Name returns the inner provider's name suffixed with ":memory".
func (p *Provider) Name() string {
	return p.name
}

// IsNull delegates to the inner provider; a null provider gains nothing
// from caching.
func (p *Provider) IsNull() bool {
	return p.inner.IsNull()
}

// CacheInputs delegates to the inner provider; the memory cache does not
// widen or narrow its inner's cache namespace.
func (p *Provider) CacheInputs(req *provider.SuggestionRequest, sink provider.CacheInputSink) {
	p.inner.CacheInputs(req, sink)
}

// CacheKey delegates to the inner provider's own key, since the memory
// cache sits directly on top of it.
func (p *Provider) CacheKey(req *provider.SuggestionRequest) string {
	return p.inner.CacheKey(req)
}

// Suggest returns a cached response when one is present and unexpired,
// with CacheTTL rewritten to the remaining time rather than the original
// stored duration. An entry found expired on read is removed immediately
// instead of waiting for the next background sweep. Otherwise it calls
// through to the inner provider and stores the result if it declares a
// CacheTTL.
func (p *Provider) Suggest(
	ctx context.Context,
	req *provider.SuggestionRequest,
) (provider.SuggestionResponse, yaerrors.Error) {
	key := p.CacheKey(req)

	if cached, meta, ok := p.data.Get(key); ok {
		now := time.Now()

		if now.After(meta.expiresAt) {
			p.data.Remove(key)
		} else {
			return cached.
				WithCacheStatus(provider.CacheStatusHit).
				WithCacheTTL(meta.expiresAt.Sub(now)), nil
		}
	}

	resp, err := p.inner.Suggest(ctx, req)
	if err != nil {
		return provider.SuggestionResponse{}, err
	}

	if resp.CacheTTL != nil && *resp.CacheTTL > 0 {
		ttl := *resp.CacheTTL

		if p.ttlCap > 0 && ttl > p.ttlCap {
			ttl = p.ttlCap
		}

		hash, hashErr := contentHash(resp.Suggestions)
		if hashErr != nil {
			p.logWarn(hashErr)
		} else {
			p.data.Insert(key, entryMeta{expiresAt: time.Now().Add(ttl)}, hash, resp)
		}
	}

	return resp.WithCacheStatus(provider.CacheStatusMiss), nil
}

func (p *Provider) logWarn(err error) {
	if p.log == nil {
		return
	}

	p.log.WithField("provider", p.name).Warnf("failed to hash suggestion content: %v", err)
}

// Reconfigure rebuilds the whole wrapper via makeFresh: the cache holds no
// configuration of its own worth preserving in place, it simply wraps
// whatever fresh inner provider the registry produces.
func (p *Provider) Reconfigure(
	ctx context.Context,
	newConfig json.RawMessage,
	makeFresh provider.MakeFreshFunc,
) (provider.SuggestionProvider, yaerrors.Error) {
	return makeFresh(ctx, newConfig)
}

// contentHash computes the FNV-1a 64-bit hash of suggestions' canonical
// JSON encoding, used as the deduped map's content-addressing key.
func contentHash(suggestions []provider.Suggestion) (uint64, error) {
	data, err := json.Marshal(suggestions)
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write(data)

	return h.Sum64(), nil
}
