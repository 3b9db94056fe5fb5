package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pointshare/redeem/internal/models"
)

const DefaultNotificationLimit = 50

type NotificationService struct {
	notifications NotificationRepository
	logger        *slog.Logger
}

func NewNotificationService(notifications NotificationRepository, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		logger:        logger,
	}
}

// List returns the user's most recent notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID string) ([]*models.Notification, error) {
	notifications, err := s.notifications.ListByUser(ctx, userID, DefaultNotificationLimit)
	if err != nil {
		s.logger.Error("failed to list notifications", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return notifications, nil
}

// SetRead marks a notification read or unread. Notifications owned by other
// users are reported as not found.
func (s *NotificationService) SetRead(ctx context.Context, userID, id string, read bool) (*models.Notification, error) {
	n, err := s.notifications.SetRead(ctx, id, userID, read)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update notification",
			slog.String("user_id", userID),
			slog.String("notification_id", id),
			slog.Any("error", err),
		)
		return nil, models.ErrInternalServer
	}
	return n, nil
}
