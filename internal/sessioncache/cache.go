// Package sessioncache keeps short-lived GET session tokens per user so that
// repeated redemption polls do not re-authenticate on every call.
//
// A miss is always recoverable by authenticating again; the cache only saves
// calls to authentication.authenticatePIN.
package sessioncache

import (
	"context"
	"time"
)

// DefaultTTL is how long a session token is reused after it was stored.
const DefaultTTL = 60 * time.Second

// Store maps a user id to their current GET session token.
type Store interface {
	Get(ctx context.Context, userID string) (string, bool)
	Set(ctx context.Context, userID, token string)
	Clear(ctx context.Context, userID string)
}
