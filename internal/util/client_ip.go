package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller IP from the request's remote address.
// The service sits behind no trusted proxy layer, so forwarded headers
// are ignored.
func ClientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err == nil {
		addr = host
	}
	if ip := net.ParseIP(strings.TrimSpace(addr)); ip != nil {
		return ip.String()
	}
	return addr
}
