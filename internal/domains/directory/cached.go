package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"circulation-backend/pkg/cache"
)

const borrowerKeyPrefix = "borrower:"

// CachedRegistry puts a read-through cache in front of a Registry. Writes
// invalidate the entry. Cache failures degrade to the underlying registry.
type CachedRegistry struct {
	next  Registry
	cache cache.Cache
	ttl   time.Duration
}

func NewCachedRegistry(next Registry, c cache.Cache, ttl time.Duration) *CachedRegistry {
	return &CachedRegistry{next: next, cache: c, ttl: ttl}
}

func (r *CachedRegistry) GetBorrower(ctx context.Context, id uuid.UUID) (*Borrower, error) {
	key := borrowerKeyPrefix + id.String()

	var cached Borrower
	hit, err := r.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("[DIRECTORY] Cache read failed")
	}
	if hit {
		return &cached, nil
	}

	b, err := r.next.GetBorrower(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, key, b, r.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("[DIRECTORY] Cache write failed")
	}
	return b, nil
}

func (r *CachedRegistry) UpsertBorrower(ctx context.Context, b *Borrower) error {
	if err := r.next.UpsertBorrower(ctx, b); err != nil {
		return err
	}
	if err := r.cache.Delete(ctx, borrowerKeyPrefix+b.ID.String()); err != nil {
		log.Warn().Err(err).Str("borrower_id", b.ID.String()).Msg("[DIRECTORY] Cache invalidation failed")
	}
	return nil
}
