package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if got := GetRequestID(ctx); got != "abc" {
		t.Errorf("GetRequestID() = %q, want abc", got)
	}
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID(empty) = %q, want empty", got)
	}
	wrongType := context.WithValue(context.Background(), requestIDContextKey, 7)
	if got := GetRequestID(wrongType); got != "" {
		t.Errorf("GetRequestID(wrong type) = %q, want empty", got)
	}
}

func TestRequestID(t *testing.T) {
	t.Run("mints a UUID", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("GET", "/all-links", nil))

		if _, err := uuid.Parse(seen); err != nil {
			t.Errorf("request ID %q is not a UUID: %v", seen, err)
		}
		if rr.Header().Get(RequestIDHeader) != seen {
			t.Errorf("header %q does not match context %q", rr.Header().Get(RequestIDHeader), seen)
		}
	})

	t.Run("keeps the caller's ID", func(t *testing.T) {
		var seen string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest("GET", "/all-links", nil)
		req.Header.Set(RequestIDHeader, "client-42")
		h.ServeHTTP(httptest.NewRecorder(), req)

		if seen != "client-42" {
			t.Errorf("request ID = %q, want client-42", seen)
		}
	})
}

func TestChain_Order(t *testing.T) {
	var calls []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls = append(calls, name+">")
				next.ServeHTTP(w, r)
				calls = append(calls, "<"+name)
			})
		}
	}

	h := Chain(mark("a"), mark("b"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	want := "a> b> handler <b <a"
	if got := strings.Join(calls, " "); got != want {
		t.Errorf("call order = %q, want %q", got, want)
	}

	called := false
	Chain()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })).
		ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if !called {
		t.Error("empty chain must still call the handler")
	}
}

func TestLogger_RecordsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "Link not found", nil)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("DELETE", "/delete-link?link=x", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v, want 404", entry["status"])
	}
	if entry["path"] != "/delete-link" {
		t.Errorf("path = %v, want /delete-link", entry["path"])
	}
	if b, _ := entry["bytes"].(float64); b <= 0 {
		t.Errorf("bytes = %v, want > 0", entry["bytes"])
	}
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}
	if rw.Status() != http.StatusOK {
		t.Errorf("Status() before write = %d, want 200", rw.Status())
	}
	_, _ = rw.Write([]byte("[]"))
	if rw.statusCode != http.StatusOK || rw.bytes != 2 {
		t.Errorf("statusCode=%d bytes=%d, want 200 and 2", rw.statusCode, rw.bytes)
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	h := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("store exploded")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest("GET", "/all-links", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rr.Code)
	}
	var body ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Error != "internal_error" {
		t.Errorf("error code = %q, want internal_error", body.Error)
	}
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantHeader string
	}{
		{"allow all", nil, "https://maps.example", "*"},
		{"listed origin", []string{"https://maps.example"}, "https://maps.example", "https://maps.example"},
		{"unlisted origin", []string{"https://maps.example"}, "https://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/all-links", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()

			CORS(tt.allowed)(ok).ServeHTTP(rr, req)

			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantHeader {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantHeader)
			}
		})
	}

	t.Run("preflight short-circuits", func(t *testing.T) {
		called := false
		h := CORS(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest("OPTIONS", "/delete-link", nil))

		if called {
			t.Error("handler must not run for OPTIONS")
		}
		if rr.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rr.Code)
		}
		if !strings.Contains(rr.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
			t.Errorf("Allow-Methods = %q, want DELETE listed", rr.Header().Get("Access-Control-Allow-Methods"))
		}
	})
}
