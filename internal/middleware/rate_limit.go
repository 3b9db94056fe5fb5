package middleware

import (
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/httprate"

	"github.com/pointshare/redeem/internal/auth"
	pkghttp "github.com/pointshare/redeem/pkg/http"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// CredentialLinkRateLimit bounds GET device registrations. Each attempt
// creates a device on the GET side.
func CredentialLinkRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 5, Window: time.Minute}
}

// ScanRateLimit allows polling well above the advertised refresh interval.
// The short window keeps the Retry-After hint on a 429 close to the poll
// cadence, so a throttled client resumes within one or two refreshes.
func ScanRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 20, Window: 10 * time.Second}
}

// PublicRateLimit bounds unauthenticated endpoints per client IP.
func PublicRateLimit() RateLimitConfig {
	return RateLimitConfig{Requests: 30, Window: time.Minute}
}

// RateLimitByUser limits authenticated callers by user id and falls back to
// the client IP when no caller is in the context.
func RateLimitByUser(config RateLimitConfig, trustedProxies []netip.Prefix) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if claims := auth.GetUserFromContext(r); claims != nil && claims.UserID != "" {
				return "user:" + claims.UserID, nil
			}
			return "ip:" + pkghttp.ClientIP(r, trustedProxies), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}

// RateLimitByIP limits unauthenticated endpoints by client IP
func RateLimitByIP(config RateLimitConfig, trustedProxies []netip.Prefix) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ClientIP(r, trustedProxies), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}
