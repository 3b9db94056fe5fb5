package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pointshare/redeem/internal/database"
	"github.com/pointshare/redeem/internal/models"
)

// UnitOfWork applies staged operations atomically. Conditional request
// transitions that match no row abort the whole unit with ErrConflict.
type UnitOfWork struct {
	db *database.DB
}

func NewUnitOfWork(db *database.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

func (u *UnitOfWork) Commit(ctx context.Context, ops ...models.Operation) error {
	return u.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, op := range ops {
			if err := apply(ctx, tx, op); err != nil {
				return err
			}
		}
		return nil
	})
}

func apply(ctx context.Context, tx pgx.Tx, op models.Operation) error {
	switch op := op.(type) {
	case models.AdjustPoints:
		return adjustPoints(ctx, tx, op)
	case models.AcceptRequest:
		return execConditional(ctx, tx, `
			UPDATE requests
			SET status = 'accepted', donor_id = $2, fulfillment_mode = $3,
			    code_issued_at = $4, code_expires_at = $5,
			    completed_at = NULL, completion_trigger = NULL, updated_at = NOW()
			WHERE id = $1 AND status = 'pending'
		`, op.RequestID, op.DonorID, string(op.Mode), op.CodeIssuedAt, op.CodeExpiresAt)
	case models.DeclineRequest:
		return execConditional(ctx, tx, `
			UPDATE requests
			SET status = 'declined', donor_id = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'pending'
		`, op.RequestID, op.DonorID)
	case models.CompleteRequest:
		return execConditional(ctx, tx, `
			UPDATE requests
			SET status = 'completed', completed_at = $2, completion_trigger = $3,
			    code_expires_at = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'accepted'
		`, op.RequestID, op.CompletedAt, op.Trigger)
	case models.CreateNotification:
		_, err := tx.Exec(ctx, `
			INSERT INTO notifications (id, user_id, type, message, read, created_at)
			VALUES ($1, $2, $3, $4, FALSE, NOW())
		`, uuid.New().String(), op.UserID, op.Type, op.Message)
		return database.MapPostgresError(err)
	default:
		return fmt.Errorf("unsupported operation %T", op)
	}
}

// adjustPoints creates the row on first use; the balance check constraint
// turns an overdraft into ErrInsufficientBalance.
func adjustPoints(ctx context.Context, tx pgx.Tx, op models.AdjustPoints) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO points (user_id, balance, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET balance = points.balance + $2, updated_at = NOW()
	`, op.UserID, op.Delta)
	return database.MapPostgresError(err)
}

func execConditional(ctx context.Context, tx pgx.Tx, query string, args ...any) error {
	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrConflict
	}
	return nil
}
