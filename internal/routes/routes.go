package routes

import (
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/pointshare/redeem/internal/auth"
	"github.com/pointshare/redeem/internal/handlers"
	"github.com/pointshare/redeem/internal/middleware"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	requestHandler *handlers.RequestHandler,
	credentialHandler *handlers.CredentialHandler,
	accountHandler *handlers.AccountHandler,
	health http.HandlerFunc,
	tokenValidator auth.TokenValidator,
	trustedProxies []netip.Prefix,
) {
	// Public routes - no authentication required
	router.With(middleware.RateLimitByIP(middleware.PublicRateLimit(), trustedProxies)).Get("/health", health)

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.AuthMiddleware(tokenValidator))

		// Request lifecycle
		r.Post("/requests", requestHandler.CreateRequest)
		r.Get("/requests", requestHandler.ListRequests)
		r.Get("/requests/{id}", requestHandler.GetRequest)
		r.Post("/requests/{id}/accept", requestHandler.AcceptRequest)
		r.Post("/requests/{id}/decline", requestHandler.DeclineRequest)

		// Redemption polling, called every few seconds by the requester's screen
		r.With(middleware.RateLimitByUser(middleware.ScanRateLimit(), trustedProxies)).
			Get("/requests/{id}/scan", requestHandler.ScanRequest)

		// GET account
		r.Get("/get-credential", credentialHandler.GetStatus)
		r.With(middleware.RateLimitByUser(middleware.CredentialLinkRateLimit(), trustedProxies)).
			Post("/get-credential", credentialHandler.Link)
		r.Patch("/get-credential", credentialHandler.UpdateMode)
		r.Delete("/get-credential", credentialHandler.Unlink)
		r.Get("/get-credential/payload", credentialHandler.GetPayload)
		r.Get("/get-credential/overview", credentialHandler.GetOverview)

		// Account
		r.Get("/points", accountHandler.GetPoints)
		r.Get("/notifications", accountHandler.ListNotifications)
		r.Patch("/notifications/{id}", accountHandler.UpdateNotification)
	})
}
