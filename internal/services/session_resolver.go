package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pointshare/redeem/internal/getclient"
	"github.com/pointshare/redeem/internal/models"
	"github.com/pointshare/redeem/internal/sessioncache"
	pkglogger "github.com/pointshare/redeem/pkg/logger"
)

// Session is a GET session id and whether it came from a live authentication.
type Session struct {
	ID   string
	Live bool
}

// SessionOutcome describes how a WithSession call obtained its session.
type SessionOutcome struct {
	// Live is set when any live authentication succeeded during the call.
	Live bool
	// Recovered is set when a cached session failed transiently and the call
	// succeeded on a fresh one.
	Recovered bool
}

// SessionResolver hands out GET sessions, reusing cached ones when possible.
type SessionResolver struct {
	client CommerceClient
	cache  sessioncache.Store
	logger *slog.Logger
}

func NewSessionResolver(client CommerceClient, cache sessioncache.Store, logger *slog.Logger) *SessionResolver {
	return &SessionResolver{
		client: client,
		cache:  cache,
		logger: logger,
	}
}

// Resolve returns the user's cached session unless forceRefresh is set, and
// otherwise authenticates and caches the new session.
func (r *SessionResolver) Resolve(ctx context.Context, userID, deviceID, pin string, forceRefresh bool) (Session, error) {
	if !forceRefresh {
		if id, ok := r.cache.Get(ctx, userID); ok {
			return Session{ID: id}, nil
		}
	}

	id, err := r.client.Authenticate(ctx, deviceID, pin)
	if err != nil {
		return Session{}, fmt.Errorf("GET authentication failed: %w", err)
	}
	if id == "" {
		return Session{}, fmt.Errorf("GET authentication returned an empty session")
	}

	r.cache.Set(ctx, userID, id)
	r.logger.Debug("GET session established",
		slog.String("user_id", userID),
		slog.String("session_fp", pkglogger.Fingerprint(id)),
	)
	return Session{ID: id, Live: true}, nil
}

// WithSession runs fn with a session. When fn fails transiently on a cached
// session, the cache entry is dropped and fn runs once more on a fresh one.
func (r *SessionResolver) WithSession(ctx context.Context, userID, deviceID, pin string, fn func(sessionID string) error) (SessionOutcome, error) {
	var outcome SessionOutcome

	session, err := r.Resolve(ctx, userID, deviceID, pin, false)
	if err != nil {
		return outcome, err
	}
	outcome.Live = session.Live

	err = fn(session.ID)
	if err == nil || session.Live || !getclient.IsTransient(err) {
		return outcome, err
	}

	r.logger.Warn("cached GET session failed, refreshing",
		slog.String("user_id", userID),
		slog.String("session_fp", pkglogger.Fingerprint(session.ID)),
		slog.Any("error", err),
	)
	r.cache.Clear(ctx, userID)

	session, err = r.Resolve(ctx, userID, deviceID, pin, true)
	if err != nil {
		return outcome, err
	}
	outcome.Live = true

	if err := fn(session.ID); err != nil {
		return outcome, err
	}
	outcome.Recovered = true
	return outcome, nil
}

// decryptCredential opens both secrets of a stored credential.
func decryptCredential(cipher SecretCipher, cred *models.Credential) (deviceID, pin string, err error) {
	deviceID, err = cipher.Decrypt(cred.EncryptedDeviceID)
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt device id: %w", err)
	}
	pin, err = cipher.Decrypt(cred.EncryptedPIN)
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt pin: %w", err)
	}
	return deviceID, pin, nil
}
