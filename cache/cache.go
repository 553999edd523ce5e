// Package cache stores repaired pricing series per postcode. Freshness is
// decided by the caller from CacheEntry.FetchedAt; backends may additionally
// drop entries once they exceed their configured TTL.
package cache

import (
	"context"
	"errors"

	"property-valuation/models"
)

// ErrCacheMiss is returned by Get when no entry exists for the key.
var ErrCacheMiss = errors.New("cache miss")

// SeriesCache is the keyed side-table shared by all valuation callers.
// Entries are replaced whole; there are no partial updates.
type SeriesCache interface {
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Set(ctx context.Context, key string, entry *models.CacheEntry) error
	Delete(ctx context.Context, key string) error
}
