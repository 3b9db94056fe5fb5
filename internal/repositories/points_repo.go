package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pointshare/redeem/internal/database"
	"github.com/pointshare/redeem/internal/models"
)

// PointsRepository reads balances. Balances only change through the unit of
// work.
type PointsRepository struct {
	pool *pgxpool.Pool
}

func NewPointsRepository(db *database.DB) *PointsRepository {
	return &PointsRepository{pool: db.Pool}
}

// GetOrCreate returns the user's balance row, creating a zero balance first
// if the user has none.
func (r *PointsRepository) GetOrCreate(ctx context.Context, userID string) (*models.Points, error) {
	query := `
		INSERT INTO points (user_id, balance, updated_at)
		VALUES ($1, 0, NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING user_id, balance, updated_at
	`

	var p models.Points
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.Balance, &p.UpdatedAt); err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &p, nil
}
