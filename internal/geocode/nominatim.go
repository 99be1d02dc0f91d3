// Package geocode resolves free-text addresses to coordinates.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sundayezeilo/geolinks/internal/geolink"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "geolinks"
	DefaultTimeout   = 10 * time.Second
)

type nominatimPlace struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Nominatim implements geolink.Geocoder against the OpenStreetMap Nominatim
// search API. It is safe for concurrent use.
type Nominatim struct {
	session   *http.Client
	baseURL   string
	userAgent string
	email     string
	backoff   time.Duration
	logger    *slog.Logger
}

// NominatimConfig holds configuration for the Nominatim client.
type NominatimConfig struct {
	BaseURL   string
	UserAgent string // required by the Nominatim usage policy
	Email     string // optional contact address sent with each query
	Timeout   time.Duration
	Client    *http.Client // overrides Timeout when set
	Logger    *slog.Logger
}

var _ geolink.Geocoder = (*Nominatim)(nil)

// NewNominatim creates a new Nominatim client.
func NewNominatim(cfg NominatimConfig) (*Nominatim, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("nominatim: invalid base url %q", cfg.BaseURL)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	session := cfg.Client
	if session == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		session = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Nominatim{
		session:   session,
		baseURL:   baseURL,
		userAgent: userAgent,
		email:     cfg.Email,
		backoff:   200 * time.Millisecond,
		logger:    logger,
	}, nil
}

// Geocode returns the best match for address. It returns
// geolink.ErrAddressNotFound when Nominatim has no result.
func (n *Nominatim) Geocode(ctx context.Context, address string) (geolink.Location, error) {
	query := normalize(address)
	if query == "" {
		return geolink.Location{}, geolink.ErrAddressNotFound
	}

	endpoint := n.baseURL + "/search"
	started := time.Now()

	resp, err := n.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := n.newRequest(ctx, http.MethodGet, endpoint)
		if err != nil {
			return nil, err
		}
		q := req.URL.Query()
		q.Set("q", query)
		q.Set("format", "jsonv2")
		q.Set("limit", "1")
		if n.email != "" {
			q.Set("email", n.email)
		}
		req.URL.RawQuery = q.Encode()
		return req, nil
	})
	if err != nil {
		return geolink.Location{}, fmt.Errorf("nominatim search: %w", err)
	}
	defer resp.Body.Close()

	var places []nominatimPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return geolink.Location{}, fmt.Errorf("nominatim search: decode response: %w", err)
	}
	if len(places) == 0 {
		return geolink.Location{}, fmt.Errorf("%w: %q", geolink.ErrAddressNotFound, query)
	}

	loc, err := places[0].location()
	if err != nil {
		return geolink.Location{}, fmt.Errorf("nominatim search: %w", err)
	}

	n.logger.DebugContext(ctx, "nominatim match",
		"query", query,
		"display_name", places[0].DisplayName,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return loc, nil
}

func (p nominatimPlace) location() (geolink.Location, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return geolink.Location{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lng, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return geolink.Location{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return geolink.Location{Lat: lat, Lng: lng}, nil
}

// normalize collapses whitespace so equivalent queries share a cache key.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
