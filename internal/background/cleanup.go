package background

import (
	"context"
	"log/slog"
	"time"
)

// SessionPurger drops expired GET session tokens
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// NotificationPurger removes read notifications older than a cutoff
type NotificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupManager periodically evicts expired session tokens and prunes old
// read notifications
type CleanupManager struct {
	sessions      SessionPurger
	notifications NotificationPurger
	retention     time.Duration
	logger        *slog.Logger
	interval      time.Duration
	now           func() time.Time
	stopCh        chan struct{}
}

const defaultInterval = 10 * time.Minute

// NewCleanupManager creates a new cleanup manager. A non-positive interval
// falls back to the default.
func NewCleanupManager(
	sessions SessionPurger,
	notifications NotificationPurger,
	retention time.Duration,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &CleanupManager{
		sessions:      sessions,
		notifications: notifications,
		retention:     retention,
		logger:        logger,
		interval:      interval,
		now:           time.Now,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single cleanup pass. A failing step is logged and does
// not prevent the other.
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if cm.sessions != nil {
		purged, err := cm.sessions.PurgeExpired(cleanupCtx)
		if err != nil {
			cm.logger.Error("failed to purge expired GET sessions", slog.Any("error", err))
		} else if purged > 0 {
			cm.logger.Info("expired GET sessions purged", slog.Int("sessions_purged", purged))
		}
	}

	if cm.notifications != nil && cm.retention > 0 {
		cutoff := cm.now().Add(-cm.retention)
		deleted, err := cm.notifications.DeleteReadBefore(cleanupCtx, cutoff)
		if err != nil {
			cm.logger.Error("failed to prune read notifications", slog.Any("error", err))
		} else if deleted > 0 {
			cm.logger.Info("read notifications pruned", slog.Int64("rows_deleted", deleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
