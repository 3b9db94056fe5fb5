package middleware

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pointshare/redeem/internal/auth"
	"github.com/pointshare/redeem/internal/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestAs(userID, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/requests/r1/scan", nil)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		req = req.WithContext(auth.WithUser(req.Context(), &models.TokenClaims{UserID: userID, Type: auth.TokenTypeAccess}))
	}
	return req
}

func TestRateLimitByUser_EnforcesPerUserLimit(t *testing.T) {
	handler := RateLimitByUser(RateLimitConfig{Requests: 3, Window: time.Minute}, nil)(okHandler())

	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs("user-a", "10.0.0.1:1234"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("user-a", "10.0.0.2:1234"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")

	// other users keep their own budget, even from the same address
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("user-b", "10.0.0.1:1234"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByUser_FallsBackToIP(t *testing.T) {
	handler := RateLimitByUser(RateLimitConfig{Requests: 1, Window: time.Minute}, nil)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("", "192.168.1.1:8080"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("", "192.168.1.1:9090"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("", "192.168.1.2:8080"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitByIP_IgnoresSpoofedForwardedFor(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{Requests: 1, Window: time.Minute}, nil)(okHandler())

	first := requestAs("", "203.0.113.7:5000")
	first.Header.Set("X-Forwarded-For", "1.1.1.1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	assert.Equal(t, http.StatusOK, rec.Code)

	second := requestAs("", "203.0.113.7:5000")
	second.Header.Set("X-Forwarded-For", "2.2.2.2")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimitByIP_TrustedProxy(t *testing.T) {
	trusted := []netip.Prefix{netip.MustParsePrefix("10.0.0.0/8")}
	handler := RateLimitByIP(RateLimitConfig{Requests: 1, Window: time.Minute}, trusted)(okHandler())

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		req := requestAs("", "10.1.2.3:443")
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, client)
	}
}

func TestRateLimitByUser_SetsRetryAfter(t *testing.T) {
	cfg := ScanRateLimit()
	handler := RateLimitByUser(cfg, nil)(okHandler())

	for i := 0; i < cfg.Requests; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestAs("poller", "10.0.0.9:1234"))
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, requestAs("poller", "10.0.0.9:1234"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("Retry-After"))
}

func TestScanRateLimit_ToleratesFastPolling(t *testing.T) {
	cfg := ScanRateLimit()
	perSecond := float64(cfg.Requests) / cfg.Window.Seconds()
	// at least twice the one-per-second cadence of an aggressive client
	assert.GreaterOrEqual(t, perSecond, 2.0)
}
