package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/sundayezeilo/geolinks/internal/config"
	"github.com/sundayezeilo/geolinks/internal/geolink"
	"github.com/sundayezeilo/geolinks/internal/geolink/filestore"
)

// fakeGeocoder knows a single address.
type fakeGeocoder struct{}

func (fakeGeocoder) Geocode(_ context.Context, address string) (geolink.Location, error) {
	if address == "Alexanderplatz, Berlin" {
		return geolink.Location{Lat: 52.5219, Lng: 13.4132}, nil
	}
	return geolink.Location{}, geolink.ErrAddressNotFound
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            "0",
			Host:            "127.0.0.1",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			IdleTimeout:     30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Store: config.StoreConfig{Backend: config.BackendFile},
		App: config.AppConfig{
			Environment: "test",
			LogLevel:    "error",
		},
		Service: config.ServiceConfig{
			Name:    "geolinks-test",
			Version: "test",
		},
	}
}

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := filestore.New(filepath.Join(t.TempDir(), filestore.DefaultPath))
	if err != nil {
		t.Fatalf("filestore.New() failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := geolink.NewHandler(geolink.HandlerConfig{
		Service: geolink.NewService(store, &geolink.ServiceConfig{Geocoder: fakeGeocoder{}, Logger: logger}),
		Logger:  logger,
	})

	ts := httptest.NewServer(New(testConfig(), logger, handler).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, target string, body any, out any) *http.Response {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, target, r)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, target, err)
		}
	}
	return resp
}

type message struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	var got map[string]string
	resp := doJSON(t, http.MethodGet, ts.URL+"/x/health", nil, &got)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if got["status"] != "ok" || got["service"] != "geolinks-test" {
		t.Errorf("health = %v", got)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestLinkLifecycle(t *testing.T) {
	ts := setupTestServer(t)
	link := "https://example.com/brandenburger-tor"

	var msg message
	resp := doJSON(t, http.MethodPost, ts.URL+"/add-or-update-link",
		map[string]any{"link": link, "lat": 52.5163, "lng": 13.3777, "description": "gate"}, &msg)
	if resp.StatusCode != http.StatusOK || msg.Message != "Link added" {
		t.Fatalf("create: status %d, %+v", resp.StatusCode, msg)
	}

	resp = doJSON(t, http.MethodPost, ts.URL+"/add-or-update-link",
		map[string]any{"link": link, "address": "Alexanderplatz, Berlin"}, &msg)
	if resp.StatusCode != http.StatusOK || msg.Message != "Link updated" {
		t.Fatalf("update: status %d, %+v", resp.StatusCode, msg)
	}

	var all []geolink.LinkResponse
	doJSON(t, http.MethodGet, ts.URL+"/all-links", nil, &all)
	if len(all) != 1 {
		t.Fatalf("all-links returned %d records, want 1", len(all))
	}
	if all[0].Location.Lat != 52.5219 || all[0].Description != nil {
		t.Errorf("record not replaced wholesale: %+v", all[0])
	}

	var one geolink.LinkResponse
	resp = doJSON(t, http.MethodGet, ts.URL+"/link?link="+url.QueryEscape(link), nil, &one)
	if resp.StatusCode != http.StatusOK || one.Link != link {
		t.Errorf("get: status %d, %+v", resp.StatusCode, one)
	}

	var nearby []geolink.LinkResponse
	doJSON(t, http.MethodGet, ts.URL+"/nearby-links?lat=52.5219&lng=13.4132", nil, &nearby)
	if len(nearby) != 1 {
		t.Errorf("nearby returned %d records, want 1", len(nearby))
	}
	doJSON(t, http.MethodGet, ts.URL+"/nearby-links?lat=48.1374&lng=11.5755&max_distance=5", nil, &nearby)
	if len(nearby) != 0 {
		t.Errorf("nearby Munich returned %d records, want 0", len(nearby))
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/delete-link?link="+url.QueryEscape(link), nil, &msg)
	if resp.StatusCode != http.StatusOK || msg.Message != "Link deleted successfully" {
		t.Fatalf("delete: status %d, %+v", resp.StatusCode, msg)
	}

	resp = doJSON(t, http.MethodDelete, ts.URL+"/delete-link?link="+url.QueryEscape(link), nil, &msg)
	if resp.StatusCode != http.StatusNotFound || msg.Message != "Link not found" {
		t.Errorf("second delete: status %d, %+v", resp.StatusCode, msg)
	}
}

func TestUpsertFailuresWriteNothing(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name     string
		body     map[string]any
		wantCode string
	}{
		{
			name:     "unknown address",
			body:     map[string]any{"link": "https://example.com", "address": "invalid-nonexistent-address-xyz"},
			wantCode: "geocode_failed",
		},
		{
			name:     "not a url",
			body:     map[string]any{"link": "not a url", "lat": 1, "lng": 2},
			wantCode: "invalid_record",
		},
		{
			name:     "no location",
			body:     map[string]any{"link": "https://example.com"},
			wantCode: "missing_location",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var msg message
			resp := doJSON(t, http.MethodPost, ts.URL+"/add-or-update-link", tt.body, &msg)
			if resp.StatusCode != http.StatusBadRequest || msg.Error != tt.wantCode {
				t.Errorf("status %d, %+v; want 400 %s", resp.StatusCode, msg, tt.wantCode)
			}
		})
	}

	var all []geolink.LinkResponse
	doJSON(t, http.MethodGet, ts.URL+"/all-links", nil, &all)
	if len(all) != 0 {
		t.Errorf("all-links returned %d records after failed upserts", len(all))
	}
}

func TestRouting(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/add-or-update-link", http.StatusMethodNotAllowed},
		{http.MethodPost, "/all-links", http.StatusMethodNotAllowed},
		{http.MethodGet, "/delete-link?link=https://a.example", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
		{http.MethodOptions, "/add-or-update-link", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp := doJSON(t, tt.method, ts.URL+tt.path, nil, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := filestore.New(filepath.Join(t.TempDir(), "links.json"))
	if err != nil {
		t.Fatal(err)
	}
	handler := geolink.NewHandler(geolink.HandlerConfig{Service: geolink.NewService(store, nil), Logger: logger})
	srv := New(testConfig(), logger, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}
}
