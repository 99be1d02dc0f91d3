package geolink

import "context"

// Store persists records keyed by link. Implementations must make Upsert and
// Delete atomic per key and must return ErrInvalidRecord (Kind Invalid) for
// records that fail Record.Validate, and ErrNotFound (Kind NotFound) for
// unknown links. All other failures carry Kind Unavailable.
type Store interface {
	Upsert(ctx context.Context, rec Record) (UpsertStatus, error)
	FetchAll(ctx context.Context) ([]Record, error)
	FetchByKey(ctx context.Context, link string) (Record, error)
	Delete(ctx context.Context, link string) error
}

// Geocoder turns a free-text address into coordinates. Implementations return
// ErrAddressNotFound when the upstream has no match.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Location, error)
}
