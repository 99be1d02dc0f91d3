package geolink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/sundayezeilo/geolinks/internal/errx"
)

const (
	DefaultMaxDistanceKm  = 1.0
	DefaultGeocodeTimeout = 10 * time.Second
)

// LocationInput is how a caller says where a link belongs: explicit
// coordinates, or an address to geocode. Coordinates count only when both are
// present and then win over the address.
type LocationInput struct {
	Lat     *float64
	Lng     *float64
	Address string
}

// UpsertRequest carries the parameters for pinning a link.
type UpsertRequest struct {
	Link        string
	Description *string
	Location    LocationInput
}

// NearbyQuery selects records within MaxDistanceKm of Center, inclusive.
type NearbyQuery struct {
	Center        Location
	MaxDistanceKm float64
}

// Service defines the business operations on geotagged links.
type Service interface {
	ResolveLocation(ctx context.Context, in LocationInput) (Location, error)
	Upsert(ctx context.Context, req UpsertRequest) (UpsertStatus, error)
	List(ctx context.Context) ([]Record, error)
	Get(ctx context.Context, link string) (Record, error)
	Delete(ctx context.Context, link string) error
	FindNearby(ctx context.Context, q NearbyQuery) ([]Record, error)
}

type service struct {
	store          Store
	geocoder       Geocoder
	geocodeTimeout time.Duration
	logger         *slog.Logger
}

// ServiceConfig holds configuration for the service.
type ServiceConfig struct {
	Geocoder       Geocoder // nil disables address resolution
	GeocodeTimeout time.Duration
	Logger         *slog.Logger
}

// NewService creates a new service instance.
func NewService(store Store, config *ServiceConfig) Service {
	if config == nil {
		config = &ServiceConfig{}
	}

	timeout := config.GeocodeTimeout
	if timeout <= 0 {
		timeout = DefaultGeocodeTimeout
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &service{
		store:          store,
		geocoder:       config.Geocoder,
		geocodeTimeout: timeout,
		logger:         logger,
	}
}

func (s *service) ResolveLocation(ctx context.Context, in LocationInput) (Location, error) {
	const op = "geolink.service.ResolveLocation"

	if in.Lat != nil && in.Lng != nil {
		loc := Location{Lat: *in.Lat, Lng: *in.Lng}
		if err := loc.Validate(); err != nil {
			return Location{}, errx.E(op, errx.Invalid, fmt.Errorf("%w: %v", ErrInvalidRecord, err))
		}
		return loc, nil
	}

	address := strings.TrimSpace(in.Address)
	if address == "" {
		return Location{}, errx.E(op, errx.Invalid, ErrMissingLocation)
	}
	if s.geocoder == nil {
		return Location{}, errx.E(op, errx.Invalid,
			fmt.Errorf("%w: no geocoder configured", ErrGeocodeFailure))
	}

	gctx, cancel := context.WithTimeout(ctx, s.geocodeTimeout)
	defer cancel()

	loc, err := s.geocoder.Geocode(gctx, address)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("geocoding timed out after %s: %w", s.geocodeTimeout, err)
		}
		return Location{}, errx.E(op, errx.Invalid, fmt.Errorf("%w: %w", ErrGeocodeFailure, err))
	}
	if err := loc.Validate(); err != nil {
		return Location{}, errx.E(op, errx.Invalid,
			fmt.Errorf("%w: geocoder returned %v", ErrGeocodeFailure, err))
	}

	s.logger.DebugContext(ctx, "address geocoded",
		"address", address,
		"lat", loc.Lat,
		"lng", loc.Lng,
	)
	return loc, nil
}

func (s *service) Upsert(ctx context.Context, req UpsertRequest) (UpsertStatus, error) {
	const op = "geolink.service.Upsert"

	// Reject a bad key before spending a geocoder round trip on it.
	if err := ValidateLink(req.Link); err != nil {
		return 0, errx.E(op, errx.Invalid, err)
	}

	loc, err := s.ResolveLocation(ctx, req.Location)
	if err != nil {
		return 0, errx.Wrap(op, err)
	}

	status, err := s.store.Upsert(ctx, Record{
		Link:        req.Link,
		Description: req.Description,
		Location:    loc,
	})
	if err != nil {
		return 0, errx.Wrap(op, err)
	}
	return status, nil
}

func (s *service) List(ctx context.Context) ([]Record, error) {
	const op = "geolink.service.List"

	recs, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}
	return recs, nil
}

func (s *service) Get(ctx context.Context, link string) (Record, error) {
	const op = "geolink.service.Get"

	if link == "" {
		return Record{}, errx.E(op, errx.Invalid, fmt.Errorf("%w: link cannot be empty", ErrInvalidRecord))
	}

	rec, err := s.store.FetchByKey(ctx, link)
	if err != nil {
		return Record{}, errx.Wrap(op, err)
	}
	return rec, nil
}

func (s *service) Delete(ctx context.Context, link string) error {
	const op = "geolink.service.Delete"

	if link == "" {
		return errx.E(op, errx.Invalid, fmt.Errorf("%w: link cannot be empty", ErrInvalidRecord))
	}

	if err := s.store.Delete(ctx, link); err != nil {
		return errx.Wrap(op, err)
	}
	return nil
}

// FindNearby returns the records whose geodesic distance from the center is
// at most q.MaxDistanceKm, in store order.
func (s *service) FindNearby(ctx context.Context, q NearbyQuery) ([]Record, error) {
	const op = "geolink.service.FindNearby"

	if err := q.Center.Validate(); err != nil {
		return nil, errx.E(op, errx.Invalid, fmt.Errorf("%w: %v", ErrInvalidQuery, err))
	}
	if math.IsNaN(q.MaxDistanceKm) || q.MaxDistanceKm < 0 {
		return nil, errx.E(op, errx.Invalid,
			fmt.Errorf("%w: max_distance must be a non-negative number", ErrInvalidQuery))
	}

	recs, err := s.store.FetchAll(ctx)
	if err != nil {
		return nil, errx.Wrap(op, err)
	}

	nearby := make([]Record, 0, len(recs))
	for _, rec := range recs {
		if DistanceKm(q.Center, rec.Location) <= q.MaxDistanceKm {
			nearby = append(nearby, rec)
		}
	}
	return nearby, nil
}
