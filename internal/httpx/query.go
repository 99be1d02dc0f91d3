package httpx

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// QueryFloat parses a required float query parameter.
func QueryFloat(r *http.Request, name string) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("query parameter %q is required", name)
	}
	return parseFloat(name, raw)
}

// QueryFloatDefault parses an optional float query parameter, returning def
// when it is absent.
func QueryFloatDefault(r *http.Request, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	return parseFloat(name, raw)
}

// QueryString returns a required, non-blank query parameter.
func QueryString(r *http.Request, name string) (string, error) {
	v := r.URL.Query().Get(name)
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("query parameter %q is required", name)
	}
	return v, nil
}

func parseFloat(name, raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("query parameter %q must be a number", name)
	}
	return f, nil
}
