package provider

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/ppiankov/factgate/internal/cache"
	"github.com/ppiankov/factgate/internal/logging"
	"github.com/ppiankov/factgate/internal/model"
)

// CachingProvider serves repeated Collect calls for a claim from a cache.
// When the wrapped provider is a Fingerprinter the key includes the
// fingerprint, so new extraction runs are never hidden by a stale entry.
// Cache failures are logged and fall through to the wrapped provider.
// Entries are written with each cache tier's own TTL.
type CachingProvider struct {
	inner Provider
	cache cache.Cache
}

// WithCache wraps p with c; a nil cache returns p unchanged
func WithCache(p Provider, c cache.Cache) Provider {
	if c == nil {
		return p
	}
	return &CachingProvider{inner: p, cache: c}
}

// Name implements Provider
func (p *CachingProvider) Name() string {
	return p.inner.Name()
}

// Collect implements Provider
func (p *CachingProvider) Collect(ctx context.Context, claimID string) ([]model.FactCandidate, error) {
	log := logging.FromContext(ctx)
	key, ok := p.key(ctx, claimID)
	if !ok {
		return p.inner.Collect(ctx, claimID)
	}

	if data, ok := p.cache.Get(key); ok {
		candidates, err := decodeCandidates(data)
		if err == nil {
			log.Debug().Str("claim_id", claimID).Int("candidates", len(candidates)).Msg("candidate cache hit")
			return candidates, nil
		}
		log.Warn().Err(err).Str("claim_id", claimID).Msg("discarding unreadable cache entry")
		_ = p.cache.Delete(key)
	}

	candidates, err := p.inner.Collect(ctx, claimID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(candidates)
	if err == nil {
		err = p.cache.Set(key, data, 0)
	}
	if err != nil {
		log.Warn().Err(err).Str("claim_id", claimID).Msg("candidate cache write failed")
	}
	return candidates, nil
}

// ListClaims implements Provider; claim listings are never cached
func (p *CachingProvider) ListClaims(ctx context.Context) ([]string, error) {
	return p.inner.ListClaims(ctx)
}

// Invalidate drops the cached candidates for a claim's current state
func (p *CachingProvider) Invalidate(ctx context.Context, claimID string) error {
	key, ok := p.key(ctx, claimID)
	if !ok {
		return nil
	}
	return p.cache.Delete(key)
}

// key returns the cache key for claimID; ok is false when the claim's state
// cannot be fingerprinted and caching must be bypassed
func (p *CachingProvider) key(ctx context.Context, claimID string) (string, bool) {
	fp, isFingerprinter := p.inner.(Fingerprinter)
	if !isFingerprinter {
		return cache.CacheKey(p.inner.Name(), claimID), true
	}
	fpr, err := fp.Fingerprint(ctx, claimID)
	if err != nil {
		logging.FromContext(ctx).Debug().Err(err).Str("claim_id", claimID).Msg("fingerprint failed; bypassing cache")
		return "", false
	}
	return cache.CacheKey(p.inner.Name(), claimID, fpr), true
}

// decodeCandidates keeps numbers as json.Number so raw values render the
// same way they did before caching
func decodeCandidates(data []byte) ([]model.FactCandidate, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	candidates := []model.FactCandidate{}
	if err := dec.Decode(&candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}
