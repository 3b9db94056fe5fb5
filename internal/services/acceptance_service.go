package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/pointshare/redeem/internal/events"
	"github.com/pointshare/redeem/internal/models"
	pkglogger "github.com/pointshare/redeem/pkg/logger"
)

// AcceptanceService accepts pending requests on behalf of a donor
type AcceptanceService struct {
	users       UserRepository
	requests    RequestRepository
	points      PointsRepository
	uow         UnitOfWork
	publisher   events.Publisher
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	codeTTL     time.Duration
	now         func() time.Time
}

// NewAcceptanceService creates a new AcceptanceService
func NewAcceptanceService(
	users UserRepository,
	requests RequestRepository,
	points PointsRepository,
	uow UnitOfWork,
	publisher events.Publisher,
	auditLogger *pkglogger.AuditLogger,
	codeTTL time.Duration,
	logger *slog.Logger,
) *AcceptanceService {
	return &AcceptanceService{
		users:       users,
		requests:    requests,
		points:      points,
		uow:         uow,
		publisher:   publisher,
		auditLogger: auditLogger,
		logger:      logger,
		codeTTL:     codeTTL,
		now:         time.Now,
	}
}

// Accept accepts a pending request as donorID. A nil override uses the
// donor's stored default fulfillment mode.
//
// Balance movement, the status change and the requester's notification are
// committed as one unit. Of two concurrent accepts on the same request,
// exactly one succeeds and the other gets ErrConflict.
func (s *AcceptanceService) Accept(ctx context.Context, requestID, donorID string, override *string) (*models.AcceptResult, error) {
	profile, err := s.users.GetDonorProfile(ctx, donorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		s.logger.Error("failed to load donor profile", slog.String("user_id", donorID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	overrideMode, err := models.ValidateOverride(override)
	if err != nil {
		return nil, err
	}
	mode := profile.User.DefaultFulfillmentMode
	if overrideMode != nil {
		mode = *overrideMode
	}

	if mode.RequiresCode() && !profile.Linked {
		return nil, models.ErrPreconditionFailed
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load request", slog.String("request_id", requestID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if req.RequesterID == donorID {
		return nil, models.ErrInvalidOperation
	}
	if req.Status != models.RequestPending {
		return nil, models.ErrConflict
	}

	result := &models.AcceptResult{Mode: mode}
	var ops []models.Operation

	if mode.RequiresTransfer() {
		donorPoints, err := s.points.GetOrCreate(ctx, donorID)
		if err != nil {
			s.logger.Error("failed to load donor points", slog.String("user_id", donorID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if _, err := s.points.GetOrCreate(ctx, req.RequesterID); err != nil {
			s.logger.Error("failed to load requester points", slog.String("user_id", req.RequesterID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if donorPoints.Balance < req.PointsRequested {
			return nil, models.ErrInsufficientBalance
		}

		before := donorPoints.Balance
		result.TransferredPoints = req.PointsRequested
		result.DonorBalanceBefore = &before
		ops = append(ops,
			models.AdjustPoints{UserID: donorID, Delta: -req.PointsRequested},
			models.AdjustPoints{UserID: req.RequesterID, Delta: req.PointsRequested},
		)
	}

	accept := models.AcceptRequest{
		RequestID: req.ID,
		DonorID:   donorID,
		Mode:      mode,
	}
	if mode.RequiresCode() {
		issued := s.now().UTC()
		expires := issued.Add(s.codeTTL)
		accept.CodeIssuedAt = &issued
		accept.CodeExpiresAt = &expires
	}

	ops = append(ops,
		accept,
		models.CreateNotification{
			UserID:  req.RequesterID,
			Type:    models.NotificationRequestAccepted,
			Message: requestNotification(profile.User, "accepted", req),
		},
	)

	if err := s.uow.Commit(ctx, ops...); err != nil {
		switch {
		case errors.Is(err, models.ErrConflict):
			s.logger.Info("request was accepted concurrently", slog.String("request_id", req.ID))
			return nil, models.ErrConflict
		case errors.Is(err, models.ErrInsufficientBalance):
			return nil, models.ErrInsufficientBalance
		}
		s.logger.Error("failed to commit acceptance", slog.String("request_id", req.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("request accepted",
		slog.String("request_id", req.ID),
		slog.String("user_id", donorID),
		slog.String("fulfillment_mode", string(mode)),
	)
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.AuditRequestAccepted,
		UserID:    donorID,
		RequestID: req.ID,
		Success:   true,
		Metadata: map[string]string{
			"fulfillment_mode":   string(mode),
			"transferred_points": strconv.Itoa(result.TransferredPoints),
		},
	})
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:              events.TypeRequestAccepted,
		RequestID:         req.ID,
		RequesterID:       req.RequesterID,
		DonorID:           donorID,
		PointsRequested:   req.PointsRequested,
		FulfillmentMode:   mode,
		TransferredPoints: result.TransferredPoints,
		OccurredAt:        s.now().UTC(),
	})

	return result, nil
}

// requestNotification renders the message sent to a requester when a donor
// acts on their request.
func requestNotification(donor *models.User, verb string, req *models.Request) string {
	return fmt.Sprintf("%s %s your request for %d points at %s", donor.DisplayName(), verb, req.PointsRequested, req.Location)
}

// publish sends an event after a successful commit. Failures are logged only.
func publish(ctx context.Context, publisher events.Publisher, logger *slog.Logger, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("failed to publish event",
			slog.String("event_type", event.Type),
			slog.String("request_id", event.RequestID),
			slog.Any("error", err),
		)
	}
}
