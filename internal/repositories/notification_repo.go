package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pointshare/redeem/internal/database"
	"github.com/pointshare/redeem/internal/models"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{pool: db.Pool}
}

func scanNotificationRow(scanner rowScanner) (*models.Notification, error) {
	var n models.Notification
	if err := scanner.Scan(&n.ID, &n.UserID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &n, nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, user_id, type, message, read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]*models.Notification, 0)
	for rows.Next() {
		n, err := scanNotificationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return notifications, nil
}

// SetRead updates the read flag on a notification owned by userID.
func (r *NotificationRepository) SetRead(ctx context.Context, id, userID string, read bool) (*models.Notification, error) {
	query := `
		UPDATE notifications SET read = $3
		WHERE id = $1 AND user_id = $2
		RETURNING id, user_id, type, message, read, created_at
	`

	return scanNotificationRow(r.pool.QueryRow(ctx, query, id, userID, read))
}

// DeleteReadBefore removes read notifications created before cutoff.
func (r *NotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM notifications WHERE read AND created_at < $1`

	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
