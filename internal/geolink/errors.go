package geolink

import "errors"

var (
	// ErrInvalidRecord is returned for a malformed link or out-of-range
	// coordinates. Nothing is persisted.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrMissingLocation is returned when an upsert carries neither
	// coordinates nor an address.
	ErrMissingLocation = errors.New("either address or lat/lng must be provided")

	// ErrGeocodeFailure covers geocoder timeouts, empty results and upstream
	// failures.
	ErrGeocodeFailure = errors.New("address could not be geocoded")

	// ErrAddressNotFound is returned by Geocoder implementations when the
	// upstream has no match for an address.
	ErrAddressNotFound = errors.New("no geocoding match")

	// ErrNotFound is returned when no record has the requested link.
	ErrNotFound = errors.New("link not found")

	// ErrInvalidQuery is returned for a bad proximity search.
	ErrInvalidQuery = errors.New("invalid query")
)
