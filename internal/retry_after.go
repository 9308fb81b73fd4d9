// internal/retry_after.go
// ------------------------
// Helpers for interpreting upstream throttling headers. The upstream API sends
// Retry-After on 429 and 503 responses, either as delta-seconds per RFC 9110 or
// as an HTTP-date; a few gateways in front of it emit compact Go-style
// durations such as "1s" or "6m0s" instead. All three forms are handled here.
package internal

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ParseRetryAfter converts a Retry-After header value into a wait duration
// relative to now. Returns 0 for empty, unparseable, or already-elapsed values.
func ParseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}

	if t, err := http.ParseTime(value); err == nil {
		d := t.Sub(now)
		if d < 0 {
			return 0
		}
		return d
	}

	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}

	return 0
}
