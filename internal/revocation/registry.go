// Package revocation maintains the denylist of access tokens invalidated
// before their natural expiry. The source of truth is Postgres, shared by all
// service instances; Redis sits in front of it as a short-TTL positive cache
// only, so a cache outage degrades to slower checks, never to stale answers
// surviving past the cache TTL.
package revocation

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/domain"
	"github.com/spec-kit/leave-service/internal/repository"
)

const cacheKeyPrefix = "revoked:"

// Registry answers "is this jti revoked?" on every authenticated request.
type Registry struct {
	store    repository.RevokedTokenRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewRegistry builds a registry. cache may be nil; lookups then always hit
// the durable store.
func NewRegistry(store repository.RevokedTokenRepository, cache *redis.Client, cacheTTL time.Duration, logger *zap.Logger) *Registry {
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Registry{store: store, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// Revoke records the token in the durable store and primes the cache so the
// issuing instance rejects it immediately.
func (r *Registry) Revoke(ctx context.Context, token domain.RevokedToken) error {
	if err := r.store.Insert(ctx, &token); err != nil {
		return err
	}
	r.cacheMark(ctx, token.JTI, token.ExpiresAt)
	return nil
}

// IsRevoked reports whether the jti has been revoked and is still within its
// original lifetime. Cache misses and cache errors fall through to Postgres.
func (r *Registry) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r.cache != nil {
		hit, err := r.cache.Exists(ctx, cacheKeyPrefix+jti).Result()
		if err == nil && hit > 0 {
			return true, nil
		}
		if err != nil {
			r.logger.Warn("revocation cache read failed", zap.Error(err))
		}
	}

	revoked, err := r.store.IsRevoked(ctx, jti)
	if err != nil {
		return false, err
	}
	if revoked {
		r.cacheMark(ctx, jti, time.Time{})
	}
	return revoked, nil
}

// PurgeExpired removes entries whose original expiry has passed. The denylist
// is time-bounded; entries past expiry are dead weight.
func (r *Registry) PurgeExpired(ctx context.Context) (int64, error) {
	return r.store.DeleteExpired(ctx)
}

// cacheMark stores a positive revocation mark. The TTL never exceeds the
// token's remaining lifetime, so the cache cannot outlive the denylist entry.
func (r *Registry) cacheMark(ctx context.Context, jti string, expiresAt time.Time) {
	if r.cache == nil {
		return
	}
	ttl := r.cacheTTL
	if !expiresAt.IsZero() {
		if remaining := time.Until(expiresAt); remaining < ttl {
			ttl = remaining
		}
	}
	if ttl <= 0 {
		return
	}
	if err := r.cache.Set(ctx, cacheKeyPrefix+jti, "1", ttl).Err(); err != nil {
		r.logger.Warn("revocation cache write failed", zap.Error(err))
	}
}
