// Package urlcanon normalizes article URLs into stable comparison keys.
package urlcanon

import (
	"net/url"
	"strings"
)

// DefaultTrackingParams is the block-list applied when no override is configured.
var DefaultTrackingParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_term",
	"utm_content",
	"ref",
}

// Canonicalizer strips tracking parameters and normalizes scheme, host and
// fragment. Canonicalize is pure and idempotent and never fails: malformed
// input comes back as a best-effort trimmed string.
type Canonicalizer struct {
	blocked map[string]struct{}
}

func New(trackingParams []string) *Canonicalizer {
	if len(trackingParams) == 0 {
		trackingParams = DefaultTrackingParams
	}
	blocked := make(map[string]struct{}, len(trackingParams))
	for _, param := range trackingParams {
		param = strings.ToLower(strings.TrimSpace(param))
		if param == "" {
			continue
		}
		blocked[param] = struct{}{}
	}
	return &Canonicalizer{blocked: blocked}
}

func Default() *Canonicalizer {
	return New(nil)
}

func (c *Canonicalizer) Canonicalize(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return trimmed
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.RawFragment = ""
	parsed.RawQuery = c.filterQuery(parsed.RawQuery)

	return parsed.String()
}

// filterQuery drops block-listed parameters while preserving the original
// order and encoding of the survivors, so a second pass is a no-op.
func (c *Canonicalizer) filterQuery(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}

	segments := strings.Split(rawQuery, "&")
	kept := make([]string, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		key := segment
		if idx := strings.IndexByte(segment, '='); idx >= 0 {
			key = segment[:idx]
		}
		decoded, err := url.QueryUnescape(key)
		if err != nil {
			decoded = key
		}
		if _, blocked := c.blocked[strings.ToLower(decoded)]; blocked {
			continue
		}
		kept = append(kept, segment)
	}
	return strings.Join(kept, "&")
}
