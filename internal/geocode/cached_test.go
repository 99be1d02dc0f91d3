package geocode

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sundayezeilo/geolinks/internal/geolink"
)

type geocoderFunc func(ctx context.Context, address string) (geolink.Location, error)

func (f geocoderFunc) Geocode(ctx context.Context, address string) (geolink.Location, error) {
	return f(ctx, address)
}

// mapCache is an in-memory Cache that can be told to fail.
type mapCache struct {
	m       map[string]geolink.Location
	getErr  error
	setErr  error
	setKeys []string
}

func (c *mapCache) Get(_ context.Context, address string) (geolink.Location, bool, error) {
	if c.getErr != nil {
		return geolink.Location{}, false, c.getErr
	}
	loc, ok := c.m[address]
	return loc, ok, nil
}

func (c *mapCache) Set(_ context.Context, address string, loc geolink.Location) error {
	c.setKeys = append(c.setKeys, address)
	if c.setErr != nil {
		return c.setErr
	}
	c.m[address] = loc
	return nil
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestCached(t *testing.T) {
	ctx := context.Background()
	berlin := geolink.Location{Lat: 52.52, Lng: 13.405}

	t.Run("second lookup served from cache", func(t *testing.T) {
		calls := 0
		upstream := geocoderFunc(func(context.Context, string) (geolink.Location, error) {
			calls++
			return berlin, nil
		})
		cache := &mapCache{m: map[string]geolink.Location{}}
		g := NewCached(upstream, cache, discard)

		for _, addr := range []string{"Berlin  Mitte", "berlin mitte"} {
			got, err := g.Geocode(ctx, addr)
			if err != nil || got != berlin {
				t.Fatalf("Geocode(%q) = %+v, %v", addr, got, err)
			}
		}
		if calls != 1 {
			t.Errorf("upstream called %d times, want 1", calls)
		}
		if len(cache.setKeys) != 1 || cache.setKeys[0] != "berlin mitte" {
			t.Errorf("cache keys = %v", cache.setKeys)
		}
	})

	t.Run("misses are not cached", func(t *testing.T) {
		upstream := geocoderFunc(func(context.Context, string) (geolink.Location, error) {
			return geolink.Location{}, geolink.ErrAddressNotFound
		})
		cache := &mapCache{m: map[string]geolink.Location{}}
		g := NewCached(upstream, cache, discard)

		_, err := g.Geocode(ctx, "nowhere")
		if !errors.Is(err, geolink.ErrAddressNotFound) {
			t.Errorf("error = %v, want ErrAddressNotFound", err)
		}
		if len(cache.setKeys) != 0 {
			t.Errorf("cache written for a miss: %v", cache.setKeys)
		}
	})

	t.Run("cache failures are bypassed", func(t *testing.T) {
		upstream := geocoderFunc(func(context.Context, string) (geolink.Location, error) {
			return berlin, nil
		})
		cache := &mapCache{
			m:      map[string]geolink.Location{},
			getErr: errors.New("connection refused"),
			setErr: errors.New("connection refused"),
		}
		g := NewCached(upstream, cache, discard)

		got, err := g.Geocode(ctx, "Berlin")
		if err != nil || got != berlin {
			t.Errorf("Geocode() = %+v, %v", got, err)
		}
	})
}
