package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller's address. Forwarding headers are honoured only
// when the direct peer is inside one of the trusted proxy prefixes, so a
// client cannot spoof its address to dodge per-IP rate limits.
func ClientIP(r *http.Request, trustedProxies []netip.Prefix) string {
	peer := remoteIP(r)

	if addr, err := netip.ParseAddr(peer); err == nil && trusted(addr, trustedProxies) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			for _, candidate := range strings.Split(xff, ",") {
				if ip, err := netip.ParseAddr(strings.TrimSpace(candidate)); err == nil {
					return ip.String()
				}
			}
		}
		if ip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
			return ip.String()
		}
	}

	return peer
}

// ParseTrustedProxies parses comma separated CIDR prefixes, skipping invalid ones.
func ParseTrustedProxies(raw string) []netip.Prefix {
	var prefixes []netip.Prefix
	for _, part := range strings.Split(raw, ",") {
		if p, err := netip.ParsePrefix(strings.TrimSpace(part)); err == nil {
			prefixes = append(prefixes, p)
		}
	}
	return prefixes
}

func remoteIP(r *http.Request) string {
	if r.RemoteAddr == "" {
		return "unknown"
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func trusted(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}
