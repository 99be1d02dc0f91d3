package geocode

import (
	"context"
	"log/slog"
	"strings"

	"github.com/sundayezeilo/geolinks/internal/geolink"
)

// Cache maps normalized addresses to coordinates.
type Cache interface {
	// Get reports ok=false on a miss.
	Get(ctx context.Context, address string) (loc geolink.Location, ok bool, err error)
	Set(ctx context.Context, address string, loc geolink.Location) error
}

// Cached consults a Cache before the wrapped geocoder and stores successful
// lookups. Cache failures are logged and never fail a lookup; misses upstream
// are not cached.
type Cached struct {
	next   geolink.Geocoder
	cache  Cache
	logger *slog.Logger
}

var _ geolink.Geocoder = (*Cached)(nil)

func NewCached(next geolink.Geocoder, cache Cache, logger *slog.Logger) *Cached {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Geocode(ctx context.Context, address string) (geolink.Location, error) {
	key := cacheKey(address)

	loc, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.WarnContext(ctx, "geocode cache read failed", "error", err.Error())
	case ok:
		return loc, nil
	}

	loc, err = c.next.Geocode(ctx, address)
	if err != nil {
		return geolink.Location{}, err
	}

	if err := c.cache.Set(ctx, key, loc); err != nil {
		c.logger.WarnContext(ctx, "geocode cache write failed", "error", err.Error())
	}
	return loc, nil
}

func cacheKey(address string) string {
	return strings.ToLower(normalize(address))
}
