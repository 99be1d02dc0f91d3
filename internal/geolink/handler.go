package geolink

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sundayezeilo/geolinks/internal/errx"
	"github.com/sundayezeilo/geolinks/internal/httpx"
)

const (
	MsgLinkAdded   = "Link added"
	MsgLinkUpdated = "Link updated"
	MsgLinkDeleted = "Link deleted successfully"
)

// HTTPUpsertLinkRequest is the JSON body of POST /add-or-update-link.
type HTTPUpsertLinkRequest struct {
	Link        string   `json:"link"`
	Description *string  `json:"description,omitempty"`
	Address     string   `json:"address,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lng         *float64 `json:"lng,omitempty"`
}

// LocationResponse is the wire form of a Location.
type LocationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// LinkResponse is the wire form of a Record.
type LinkResponse struct {
	Link        string           `json:"link"`
	Description *string          `json:"description"`
	Location    LocationResponse `json:"location"`
}

// Handler provides HTTP handlers for the link registry.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
	}
}

// UpsertLink handles POST /add-or-update-link.
func (h *Handler) UpsertLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	req, err := httpx.DecodeJSON[HTTPUpsertLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	status, err := h.service.Upsert(ctx, UpsertRequest{
		Link:        req.Link,
		Description: req.Description,
		Location: LocationInput{
			Lat:     req.Lat,
			Lng:     req.Lng,
			Address: req.Address,
		},
	})
	if err != nil {
		h.handleError(ctx, w, err, "link", req.Link)
		return
	}

	logger.InfoContext(ctx, "link saved",
		"link", req.Link,
		"status", status.String(),
		"geocoded", req.Lat == nil || req.Lng == nil,
	)

	msg := MsgLinkUpdated
	if status == Created {
		msg = MsgLinkAdded
	}
	httpx.WriteMessage(w, http.StatusOK, msg)
}

// ListLinks handles GET /all-links.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	recs, err := h.service.List(ctx)
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLinkResponses(recs))
}

// GetLink handles GET /link?link=.
func (h *Handler) GetLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	link, err := httpx.QueryString(r, "link")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	rec, err := h.service.Get(ctx, link)
	if err != nil {
		h.handleError(ctx, w, err, "link", link)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLinkResponse(rec))
}

// NearbyLinks handles GET /nearby-links?lat=&lng=&max_distance=.
func (h *Handler) NearbyLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := parseNearbyQuery(r)
	if err != nil {
		h.requestLogger(r).WarnContext(ctx, "invalid nearby query",
			"error", err.Error(),
			"query", r.URL.RawQuery,
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_query", err.Error(), nil)
		return
	}

	recs, err := h.service.FindNearby(ctx, q)
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toLinkResponses(recs))
}

func parseNearbyQuery(r *http.Request) (NearbyQuery, error) {
	lat, err := httpx.QueryFloat(r, "lat")
	if err != nil {
		return NearbyQuery{}, err
	}
	lng, err := httpx.QueryFloat(r, "lng")
	if err != nil {
		return NearbyQuery{}, err
	}
	maxDist, err := httpx.QueryFloatDefault(r, "max_distance", DefaultMaxDistanceKm)
	if err != nil {
		return NearbyQuery{}, err
	}
	return NearbyQuery{
		Center:        Location{Lat: lat, Lng: lng},
		MaxDistanceKm: maxDist,
	}, nil
}

// DeleteLink handles DELETE /delete-link?link=.
func (h *Handler) DeleteLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.requestLogger(r)

	link, err := httpx.QueryString(r, "link")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if err := h.service.Delete(ctx, link); err != nil {
		h.handleError(ctx, w, err, "link", link)
		return
	}

	logger.InfoContext(ctx, "link deleted", "link", link)
	httpx.WriteMessage(w, http.StatusOK, MsgLinkDeleted)
}

func (h *Handler) requestLogger(r *http.Request) *slog.Logger {
	return h.logger.With(
		"request_id", httpx.GetRequestID(r.Context()),
		"method", r.Method,
		"path", r.URL.Path,
	)
}

// handleError maps service errors onto the response. Domain sentinels pick
// the code; anything else falls back to the error kind.
func (h *Handler) handleError(ctx context.Context, w http.ResponseWriter, err error, attrs ...any) {
	kind := errx.KindOf(err)

	logAttrs := append([]any{
		"request_id", httpx.GetRequestID(ctx),
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}, attrs...)

	switch {
	case errors.Is(err, ErrMissingLocation):
		h.logger.WarnContext(ctx, "missing location", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "missing_location",
			"Either address or lat/lng must be provided.", nil)

	case errors.Is(err, ErrGeocodeFailure):
		h.logger.WarnContext(ctx, "geocoding failed", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "geocode_failed",
			"Address could not be geocoded.", nil)

	case errors.Is(err, ErrInvalidRecord):
		h.logger.WarnContext(ctx, "invalid record", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_record", causeMessage(err), nil)

	case errors.Is(err, ErrInvalidQuery):
		h.logger.WarnContext(ctx, "invalid query", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_query", causeMessage(err), nil)

	case errors.Is(err, ErrNotFound) || kind == errx.NotFound:
		h.logger.WarnContext(ctx, "link not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Link not found", nil)

	default:
		status := httpx.ErrorKindToStatus(kind)
		msg := causeMessage(err)
		switch kind {
		case errx.Invalid:
			h.logger.WarnContext(ctx, "invalid request", logAttrs...)
		case errx.Unavailable:
			h.logger.ErrorContext(ctx, "store unavailable", logAttrs...)
			msg = "The link store is unavailable. Please try again."
		default:
			h.logger.ErrorContext(ctx, "unexpected error", logAttrs...)
			msg = "Something went wrong. Please try again."
		}
		httpx.WriteError(w, status, httpx.ErrorKindToCode(kind), msg, nil)
	}
}

// causeMessage strips the operation prefixes so clients see only the
// innermost cause, e.g. "invalid record: link must include host".
func causeMessage(err error) string {
	for {
		var e *errx.Error
		if !errors.As(err, &e) || e.Err == nil {
			return strings.TrimSpace(err.Error())
		}
		err = e.Err
	}
}

func toLinkResponse(rec Record) LinkResponse {
	return LinkResponse{
		Link:        rec.Link,
		Description: rec.Description,
		Location:    LocationResponse{Lat: rec.Location.Lat, Lng: rec.Location.Lng},
	}
}

func toLinkResponses(recs []Record) []LinkResponse {
	out := make([]LinkResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toLinkResponse(rec))
	}
	return out
}
