// Package voter derives the coarse per-request identity used to de-duplicate votes.
package voter

import (
	"net/http"
	"strings"
)

// Unknown is the key used when no forwarding header is present.
const Unknown = "unknown"

// Key returns the voter key for r: the first entry of X-Forwarded-For, else
// X-Real-IP, else Unknown. Values are not checked for IP syntax; requests
// behind one proxy or NAT share a key.
func Key(r *http.Request) string {
	return FromHeader(r.Header)
}

// FromHeader applies the Key policy to a header set.
func FromHeader(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(h.Get("X-Real-IP")); real != "" {
		return real
	}
	return Unknown
}
