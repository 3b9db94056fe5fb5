package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pointshare/redeem/internal/events"
	"github.com/pointshare/redeem/internal/models"
	pkglogger "github.com/pointshare/redeem/pkg/logger"
)

const (
	DefaultRequestListLimit = 50
	MaxRequestListLimit     = 200
)

// RequestService handles the request lifecycle outside of acceptance and
// redemption.
type RequestService struct {
	users       UserRepository
	requests    RequestRepository
	uow         UnitOfWork
	publisher   events.Publisher
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	now         func() time.Time
}

// NewRequestService creates a new RequestService
func NewRequestService(
	users UserRepository,
	requests RequestRepository,
	uow UnitOfWork,
	publisher events.Publisher,
	auditLogger *pkglogger.AuditLogger,
	logger *slog.Logger,
) *RequestService {
	return &RequestService{
		users:       users,
		requests:    requests,
		uow:         uow,
		publisher:   publisher,
		auditLogger: auditLogger,
		logger:      logger,
		now:         time.Now,
	}
}

// Create opens a pending request for points at a location.
func (s *RequestService) Create(ctx context.Context, requesterID string, points int, location string, message *string) (*models.Request, error) {
	location = strings.TrimSpace(location)
	if points <= 0 || location == "" {
		return nil, models.ErrBadRequest
	}
	if message != nil {
		trimmed := strings.TrimSpace(*message)
		message = &trimmed
		if trimmed == "" {
			message = nil
		}
	}

	req, err := s.requests.Create(ctx, &models.Request{
		RequesterID:     requesterID,
		PointsRequested: points,
		Location:        location,
		Message:         message,
		Status:          models.RequestPending,
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to create request", slog.String("user_id", requesterID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("request created",
		slog.String("request_id", req.ID),
		slog.String("user_id", requesterID),
		slog.Int("points", points),
	)
	return req, nil
}

// Get returns a request to one of its participants.
func (s *RequestService) Get(ctx context.Context, userID, requestID string) (*models.Request, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get request", slog.String("request_id", requestID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !req.IsParticipant(userID) {
		return nil, models.ErrForbidden
	}
	return req, nil
}

// ListForUser lists requests by the caller's role, newest first.
func (s *RequestService) ListForUser(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error) {
	if !role.Valid() {
		return nil, models.ErrBadRequest
	}
	limit = clampWindow(limit, DefaultRequestListLimit, MaxRequestListLimit)

	reqs, err := s.requests.ListForUser(ctx, userID, role, limit)
	if err != nil {
		s.logger.Error("failed to list requests",
			slog.String("user_id", userID),
			slog.String("role", string(role)),
			slog.Any("error", err),
		)
		return nil, models.ErrInternalServer
	}
	return reqs, nil
}

// Decline declines a pending request as donorID and notifies the requester.
func (s *RequestService) Decline(ctx context.Context, requestID, donorID string) error {
	donor, err := s.users.GetByID(ctx, donorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUserNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", donorID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to get request", slog.String("request_id", requestID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if req.RequesterID == donorID {
		return models.ErrInvalidOperation
	}
	if req.Status != models.RequestPending {
		return models.ErrConflict
	}

	err = s.uow.Commit(ctx,
		models.DeclineRequest{RequestID: req.ID, DonorID: donorID},
		models.CreateNotification{
			UserID:  req.RequesterID,
			Type:    models.NotificationRequestDeclined,
			Message: requestNotification(donor, "declined", req),
		},
	)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return models.ErrConflict
		}
		s.logger.Error("failed to commit decline", slog.String("request_id", req.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("request declined", slog.String("request_id", req.ID), slog.String("user_id", donorID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.AuditRequestDeclined,
		UserID:    donorID,
		RequestID: req.ID,
		Success:   true,
	})
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:            events.TypeRequestDeclined,
		RequestID:       req.ID,
		RequesterID:     req.RequesterID,
		DonorID:         donorID,
		PointsRequested: req.PointsRequested,
		OccurredAt:      s.now().UTC(),
	})
	return nil
}
