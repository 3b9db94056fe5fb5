package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/pointshare/redeem/internal/models"
)

// PointsService exposes read access to app balances. Balances only change
// through the acceptance unit of work.
type PointsService struct {
	points PointsRepository
	logger *slog.Logger
}

func NewPointsService(points PointsRepository, logger *slog.Logger) *PointsService {
	return &PointsService{
		points: points,
		logger: logger,
	}
}

// Balance returns the user's balance, creating a zero row on first use.
func (s *PointsService) Balance(ctx context.Context, userID string) (*models.Points, error) {
	points, err := s.points.GetOrCreate(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get points", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return points, nil
}
