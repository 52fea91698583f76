// Package httputil holds small HTTP helpers shared by the API and the
// streaming endpoint.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the best-guess client address for a request. Proxy
// headers are consulted only when trustProxy is set: a spoofable header
// must never feed the per-IP limiter on a directly exposed server.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, candidate := range proxyCandidates(r) {
			if ip := net.ParseIP(candidate); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// proxyCandidates lists header-derived addresses in preference order:
// the leftmost X-Forwarded-For hop (the original client), then X-Real-IP.
// Values that do not parse as IPs are dropped by the caller.
func proxyCandidates(r *http.Request) []string {
	var out []string
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		out = append(out, strings.TrimSpace(first))
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		out = append(out, strings.TrimSpace(xri))
	}
	return out
}
