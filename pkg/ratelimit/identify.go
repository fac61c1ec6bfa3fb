package ratelimit

import (
	"net/http"
	"strings"
)

// Identify derives the rate-limit key for a request. Authenticated callers
// are keyed by user id; anonymous callers by the proxy-reported client IP,
// falling back to "unknown" when no address header is present.
func Identify(r *http.Request, userID string) string {
	if userID != "" {
		return "user:" + userID
	}
	addr := "unknown"
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		addr = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if real := r.Header.Get("X-Real-IP"); real != "" {
		addr = real
	}
	return "ip:" + addr
}
