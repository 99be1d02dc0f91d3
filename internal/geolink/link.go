package geolink

import (
	"fmt"
	"net/url"
	"strings"
)

// MaxLinkLength bounds the stored key.
const MaxLinkLength = 2048

// ValidateLink reports whether raw is an absolute http(s) URL with a host.
// The returned error wraps ErrInvalidRecord.
func ValidateLink(raw string) error {
	if msg := checkLink(raw); msg != "" {
		return fmt.Errorf("%w: %s", ErrInvalidRecord, msg)
	}
	return nil
}

func checkLink(raw string) string {
	if raw == "" {
		return "link cannot be empty"
	}
	if len(raw) > MaxLinkLength {
		return fmt.Sprintf("link too long (max %d characters)", MaxLinkLength)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return "link must not contain whitespace"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "invalid link format"
	}
	if u.Scheme == "" {
		return "link must include scheme (http or https)"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "link scheme must be http or https"
	}
	if u.Hostname() == "" {
		return "link must include host"
	}
	return ""
}
