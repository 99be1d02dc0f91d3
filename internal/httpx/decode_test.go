package httpx

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

type pinRequest struct {
	Link string   `json:"link"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		errContains string
		check       func(*testing.T, pinRequest)
	}{
		{
			name: "valid body",
			body: `{"link":"https://example.com","lat":52.52,"lng":13.405}`,
			check: func(t *testing.T, req pinRequest) {
				if req.Link != "https://example.com" {
					t.Errorf("Link = %q, want https://example.com", req.Link)
				}
				if req.Lat == nil || *req.Lat != 52.52 {
					t.Errorf("Lat = %v, want 52.52", req.Lat)
				}
			},
		},
		{
			name: "omitted pointers stay nil",
			body: `{"link":"https://example.com"}`,
			check: func(t *testing.T, req pinRequest) {
				if req.Lat != nil || req.Lng != nil {
					t.Errorf("expected nil coordinates, got %v %v", req.Lat, req.Lng)
				}
			},
		},
		{name: "empty body", body: "", errContains: "request body is empty"},
		{name: "syntax error", body: `{"link":"https://example.com",}`, errContains: "malformed JSON"},
		{name: "unknown field", body: `{"link":"x","zoom":3}`, errContains: "zoom"},
		{name: "wrong type", body: `{"link":"x","lat":"north"}`, errContains: `invalid value for field "lat"`},
		{name: "two objects", body: `{"link":"a"}{"link":"b"}`, errContains: "multiple JSON objects"},
		{name: "trailing garbage", body: `{"link":"a"}xyz`, errContains: "multiple JSON objects"},
		{
			name:        "too large",
			body:        `{"link":"` + strings.Repeat("a", MaxRequestBodySize) + `"}`,
			errContains: "request body too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/add-or-update-link", strings.NewReader(tt.body))

			got, err := DecodeJSON[pinRequest](req)

			if tt.errContains != "" {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.errContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestDecodeJSON_ClosesBody(t *testing.T) {
	body := &trackingBody{Reader: strings.NewReader(`{"link":"https://example.com"}`)}
	req := httptest.NewRequest("POST", "/", body)

	if _, err := DecodeJSON[pinRequest](req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !body.closed {
		t.Error("expected body to be closed")
	}
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}
