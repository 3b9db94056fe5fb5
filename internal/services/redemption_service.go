package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pointshare/redeem/internal/events"
	"github.com/pointshare/redeem/internal/getclient"
	"github.com/pointshare/redeem/internal/models"
	pkglogger "github.com/pointshare/redeem/pkg/logger"
)

// RedemptionService drives the scan state machine polled by a requester.
type RedemptionService struct {
	requests    RequestRepository
	credentials CredentialRepository
	uow         UnitOfWork
	cipher      SecretCipher
	sessions    *SessionResolver
	client      CommerceClient
	publisher   events.Publisher
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	codeTTL     time.Duration
	refresh     time.Duration
	now         func() time.Time
}

// NewRedemptionService creates a new RedemptionService
func NewRedemptionService(
	requests RequestRepository,
	credentials CredentialRepository,
	uow UnitOfWork,
	cipher SecretCipher,
	sessions *SessionResolver,
	client CommerceClient,
	publisher events.Publisher,
	auditLogger *pkglogger.AuditLogger,
	codeTTL, refresh time.Duration,
	logger *slog.Logger,
) *RedemptionService {
	return &RedemptionService{
		requests:    requests,
		credentials: credentials,
		uow:         uow,
		cipher:      cipher,
		sessions:    sessions,
		client:      client,
		publisher:   publisher,
		auditLogger: auditLogger,
		logger:      logger,
		codeTTL:     codeTTL,
		refresh:     refresh,
		now:         time.Now,
	}
}

// Scan advances and reports the redemption state of a request for its
// requester.
//
// Completion is decided by the donor's GET ledger: the first transaction seen
// since the code was issued completes the request. Any failure talking to GET
// degrades to donor_unlinked instead of an error.
func (s *RedemptionService) Scan(ctx context.Context, requestID, userID string) (models.ScanState, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load request", slog.String("request_id", requestID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if req.RequesterID != userID {
		return nil, models.ErrForbidden
	}

	if state, done := settledState(req); done {
		return state, nil
	}

	if req.DonorID == nil {
		return models.UnavailableScan{Reason: models.ReasonDonorUnlinked}, nil
	}
	donorID := *req.DonorID

	cred, err := s.credentials.GetByUserID(ctx, donorID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.UnavailableScan{Reason: models.ReasonDonorUnlinked}, nil
		}
		s.logger.Error("failed to load donor credential", slog.String("request_id", req.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	req, err = s.armCodeWindow(ctx, req)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return s.reload(ctx, requestID)
		}
		s.logger.Error("failed to arm code window", slog.String("request_id", req.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	payload, txns, ok := s.fetchLedger(ctx, req, donorID, cred)
	if !ok {
		return models.UnavailableScan{Reason: models.ReasonDonorUnlinked}, nil
	}

	if len(txns) > 0 {
		return s.complete(ctx, req, donorID, txns)
	}

	if payload == "" {
		return models.UnavailableScan{Reason: models.ReasonDonorUnlinked}, nil
	}

	return models.ActiveScan{
		Payload:   payload,
		ExpiresAt: *req.CodeExpiresAt,
		Refresh:   s.refresh,
	}, nil
}

// settledState returns the state for requests that need no GET round trip.
func settledState(req *models.Request) (models.ScanState, bool) {
	if req.Status == models.RequestCompleted && req.CompletedAt != nil {
		return models.CompletedScan{CompletedAt: *req.CompletedAt}, true
	}
	if req.Status != models.RequestAccepted {
		return models.UnavailableScan{Reason: models.ReasonNotAccepted}, true
	}
	if !req.Mode().RequiresCode() {
		return models.UnavailableScan{Reason: models.ReasonNotCodeMode}, true
	}
	return nil, false
}

// armCodeWindow issues the code window when it is missing and re-arms it
// when it has lapsed.
func (s *RedemptionService) armCodeWindow(ctx context.Context, req *models.Request) (*models.Request, error) {
	now := s.now().UTC()

	var issuedAt *time.Time
	if req.CodeIssuedAt == nil {
		issuedAt = &now
	}

	expiresAt := now.Add(s.codeTTL)
	lapsed := req.CodeExpiresAt == nil || !now.Before(*req.CodeExpiresAt)
	if !lapsed {
		if issuedAt == nil {
			return req, nil
		}
		expiresAt = *req.CodeExpiresAt
	}

	updated, err := s.requests.ArmCodeWindow(ctx, req.ID, issuedAt, expiresAt)
	if err != nil {
		return req, err
	}
	s.logger.Info("code window armed",
		slog.String("request_id", req.ID),
		slog.Time("expires_at", expiresAt),
	)
	return updated, nil
}

// fetchLedger pulls a fresh barcode payload and the donor's transactions
// since the code was issued. ok is false on any failure.
func (s *RedemptionService) fetchLedger(ctx context.Context, req *models.Request, donorID string, cred *models.Credential) (payload string, txns []getclient.Transaction, ok bool) {
	deviceID, pin, err := decryptCredential(s.cipher, cred)
	if err != nil {
		s.logger.Warn("donor credential unusable",
			slog.String("request_id", req.ID),
			slog.String("user_id", donorID),
			slog.Any("error", err),
		)
		return "", nil, false
	}

	outcome, err := s.sessions.WithSession(ctx, donorID, deviceID, pin, func(sessionID string) error {
		var err error
		payload, err = s.client.FetchBarcodePayload(ctx, sessionID)
		if err != nil {
			return err
		}
		txns, err = s.client.FetchTransactionsSince(ctx, sessionID, *req.CodeIssuedAt)
		return err
	})
	if err != nil {
		s.logger.Warn("GET ledger unavailable for scan",
			slog.String("request_id", req.ID),
			slog.String("user_id", donorID),
			slog.Any("error", err),
		)
		return "", nil, false
	}

	if outcome.Live {
		if err := s.credentials.TouchValidated(ctx, donorID, s.now().UTC()); err != nil {
			s.logger.Warn("failed to record credential validation", slog.String("user_id", donorID), slog.Any("error", err))
		}
	}
	return payload, txns, true
}

// complete marks the request redeemed and freezes its code window.
func (s *RedemptionService) complete(ctx context.Context, req *models.Request, donorID string, txns []getclient.Transaction) (models.ScanState, error) {
	completedAt := s.now().UTC()

	err := s.uow.Commit(ctx,
		models.CompleteRequest{
			RequestID:   req.ID,
			CompletedAt: completedAt,
			Trigger:     models.CompletionFirstGetTransaction,
		},
		models.CreateNotification{
			UserID:  donorID,
			Type:    models.NotificationRequestCompleted,
			Message: completionNotification(req),
		},
	)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return s.reload(ctx, req.ID)
		}
		s.logger.Error("failed to complete request", slog.String("request_id", req.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("request completed",
		slog.String("request_id", req.ID),
		slog.String("transaction_id", txns[0].TransactionID),
	)
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.AuditRequestCompleted,
		UserID:    req.RequesterID,
		RequestID: req.ID,
		Success:   true,
		Metadata:  map[string]string{"completion_trigger": models.CompletionFirstGetTransaction},
	})
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:              events.TypeRequestCompleted,
		RequestID:         req.ID,
		RequesterID:       req.RequesterID,
		DonorID:           donorID,
		PointsRequested:   req.PointsRequested,
		FulfillmentMode:   req.Mode(),
		CompletionTrigger: models.CompletionFirstGetTransaction,
		OccurredAt:        completedAt,
	})

	return models.CompletedScan{CompletedAt: completedAt}, nil
}

// reload re-reads a request that changed underneath a poll, typically
// because a concurrent poll completed it.
func (s *RedemptionService) reload(ctx context.Context, requestID string) (models.ScanState, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to reload request", slog.String("request_id", requestID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if state, done := settledState(req); done {
		return state, nil
	}
	return models.UnavailableScan{Reason: models.ReasonNotAccepted}, nil
}

func completionNotification(req *models.Request) string {
	return "Your code for " + req.Location + " was redeemed"
}
