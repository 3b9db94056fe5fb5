package services

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pointshare/redeem/internal/getclient"
	"github.com/pointshare/redeem/internal/models"
	"github.com/pointshare/redeem/internal/onboarding"
	"github.com/pointshare/redeem/internal/sessioncache"
	pkglogger "github.com/pointshare/redeem/pkg/logger"
)

// Overview window bounds
const (
	DefaultOverviewHours = 24
	MaxOverviewHours     = 336
	DefaultOverviewLimit = 25
	MaxOverviewLimit     = 200
)

// RecoveredWarning is reported when an overview succeeded only after the
// cached GET session was replaced.
const RecoveredWarning = "Recovered after transient GET error; session was refreshed."

// BarcodePayload is a freshly fetched scannable payload for the account owner.
type BarcodePayload struct {
	Payload   string
	FetchedAt time.Time
}

// CredentialOverview is the account owner's combined app and GET view.
type CredentialOverview struct {
	Connected               bool
	AppBalance              int
	TotalGetBalance         float64
	BarcodePayload          string
	Accounts                []getclient.Account
	Transactions            []getclient.Transaction
	TransactionsWindowHours int
	ReturnedTransactions    int
	FetchedAt               time.Time
	Warning                 string
}

// CredentialService manages a user's linked GET account.
type CredentialService struct {
	users       UserRepository
	credentials CredentialRepository
	points      PointsRepository
	cipher      SecretCipher
	client      CommerceClient
	sessions    *SessionResolver
	cache       sessioncache.Store
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	now         func() time.Time
}

// NewCredentialService creates a new CredentialService
func NewCredentialService(
	users UserRepository,
	credentials CredentialRepository,
	points PointsRepository,
	cipher SecretCipher,
	client CommerceClient,
	sessions *SessionResolver,
	cache sessioncache.Store,
	auditLogger *pkglogger.AuditLogger,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		users:       users,
		credentials: credentials,
		points:      points,
		cipher:      cipher,
		client:      client,
		sessions:    sessions,
		cache:       cache,
		auditLogger: auditLogger,
		logger:      logger,
		now:         time.Now,
	}
}

// Status reports whether the user has a linked GET account.
func (s *CredentialService) Status(ctx context.Context, userID string) (*models.CredentialStatus, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUserNotFound
		}
		s.logger.Error("failed to get user", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	status := &models.CredentialStatus{DefaultFulfillmentMode: user.DefaultFulfillmentMode}

	cred, err := s.credentials.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		validated := cred.LastValidatedAt
		status.Connected = true
		status.LastValidatedAt = &validated
	case errors.Is(err, models.ErrNotFound):
	default:
		s.logger.Error("failed to get credential", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return status, nil
}

// Link registers a new device credential with GET using the session found in
// validatedURL and stores it encrypted.
//
// Returns ErrInvalidValidatedURL when no session can be found, ErrBadRequest
// when GET refuses the device, and ErrInternalServer for any other failure.
func (s *CredentialService) Link(ctx context.Context, userID, validatedURL string) error {
	sessionID, ok := onboarding.ExtractValidatedSessionID(validatedURL)
	if !ok {
		return models.ErrInvalidValidatedURL
	}

	deviceID, err := onboarding.GenerateDeviceID()
	if err != nil {
		s.logger.Error("failed to generate device id", slog.Any("error", err))
		return models.ErrInternalServer
	}
	pin, err := onboarding.GeneratePIN()
	if err != nil {
		s.logger.Error("failed to generate pin", slog.Any("error", err))
		return models.ErrInternalServer
	}

	created, err := s.client.CreateDeviceCredential(ctx, sessionID, deviceID, pin)
	if err != nil {
		s.linkFailed(ctx, userID, "create_pin_failed", err)
		return models.ErrInternalServer
	}
	if !created {
		s.linkFailed(ctx, userID, "create_pin_rejected", nil)
		return models.ErrBadRequest
	}

	// the new device must be able to authenticate before it is stored
	if _, err := s.client.Authenticate(ctx, deviceID, pin); err != nil {
		s.linkFailed(ctx, userID, "authenticate_failed", err)
		return models.ErrInternalServer
	}

	encDevice, err := s.cipher.Encrypt(deviceID)
	if err != nil {
		s.linkFailed(ctx, userID, "encrypt_failed", err)
		return models.ErrInternalServer
	}
	encPIN, err := s.cipher.Encrypt(pin)
	if err != nil {
		s.linkFailed(ctx, userID, "encrypt_failed", err)
		return models.ErrInternalServer
	}

	err = s.credentials.Upsert(ctx, &models.Credential{
		UserID:            userID,
		EncryptedDeviceID: encDevice,
		EncryptedPIN:      encPIN,
		LastValidatedAt:   s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.linkFailed(ctx, userID, "store_failed", err)
		return models.ErrInternalServer
	}
	s.cache.Clear(ctx, userID)

	s.logger.Info("GET account linked", slog.String("user_id", userID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.AuditCredentialLinked,
		UserID:    userID,
		Success:   true,
	})
	return nil
}

func (s *CredentialService) linkFailed(ctx context.Context, userID, reason string, err error) {
	if err != nil {
		s.logger.Error("failed to link GET account",
			slog.String("user_id", userID),
			slog.String("reason", reason),
			slog.Any("error", err),
		)
	}
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType:     pkglogger.AuditCredentialLinked,
		UserID:        userID,
		Success:       false,
		FailureReason: reason,
	})
}

// Unlink revokes the device on GET when possible and always deletes the
// stored credential.
func (s *CredentialService) Unlink(ctx context.Context, userID string) error {
	cred, err := s.credentials.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		s.revoke(ctx, userID, cred)
	case errors.Is(err, models.ErrNotFound):
	default:
		s.logger.Error("failed to get credential", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.credentials.Delete(ctx, userID); err != nil {
		s.logger.Error("failed to delete credential", slog.String("user_id", userID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.cache.Clear(ctx, userID)

	s.logger.Info("GET account unlinked", slog.String("user_id", userID))
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.AuditCredentialUnlinked,
		UserID:    userID,
		Success:   true,
	})
	return nil
}

// revoke is best effort; failures are logged and ignored.
func (s *CredentialService) revoke(ctx context.Context, userID string, cred *models.Credential) {
	deviceID, pin, err := decryptCredential(s.cipher, cred)
	if err != nil {
		s.logger.Warn("skipping GET device revocation", slog.String("user_id", userID), slog.Any("error", err))
		return
	}

	sessionID, err := s.client.Authenticate(ctx, deviceID, pin)
	if err != nil {
		s.logger.Warn("failed to authenticate for GET device revocation", slog.String("user_id", userID), slog.Any("error", err))
		return
	}

	revoked, err := s.client.RevokeDeviceCredential(ctx, sessionID, deviceID)
	if err != nil {
		s.logger.Warn("failed to revoke GET device", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	if !revoked {
		s.logger.Warn("GET refused device revocation", slog.String("user_id", userID))
	}
}

// SetDefaultMode stores the fulfillment mode used when a donor accepts
// without an override.
func (s *CredentialService) SetDefaultMode(ctx context.Context, userID, raw string) (models.FulfillmentMode, error) {
	mode := models.FulfillmentMode(raw)
	if !mode.Valid() {
		return "", models.ErrInvalidFulfillmentMode
	}

	user, err := s.users.UpdateDefaultMode(ctx, userID, mode)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrUserNotFound
		}
		s.logger.Error("failed to update fulfillment mode", slog.String("user_id", userID), slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.logger.Info("default fulfillment mode updated",
		slog.String("user_id", userID),
		slog.String("fulfillment_mode", string(user.DefaultFulfillmentMode)),
	)
	return user.DefaultFulfillmentMode, nil
}

// BarcodePayload fetches the owner's current scannable payload.
func (s *CredentialService) BarcodePayload(ctx context.Context, userID string) (*BarcodePayload, error) {
	deviceID, pin, err := s.openCredential(ctx, userID)
	if err != nil {
		return nil, err
	}

	var payload string
	outcome, err := s.sessions.WithSession(ctx, userID, deviceID, pin, func(sessionID string) error {
		var err error
		payload, err = s.client.FetchBarcodePayload(ctx, sessionID)
		return err
	})
	if err != nil {
		s.logger.Error("failed to fetch barcode payload", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	s.touch(ctx, userID, outcome)

	return &BarcodePayload{Payload: payload, FetchedAt: s.now().UTC()}, nil
}

// Overview combines the app balance with the owner's GET accounts, payload
// and recent transactions. It reports Connected=false without calling GET
// when no credential is linked.
func (s *CredentialService) Overview(ctx context.Context, userID string, hours, limit int) (*CredentialOverview, error) {
	hours = clampWindow(hours, DefaultOverviewHours, MaxOverviewHours)
	limit = clampWindow(limit, DefaultOverviewLimit, MaxOverviewLimit)

	points, err := s.points.GetOrCreate(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to get points", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	overview := &CredentialOverview{
		AppBalance:              points.Balance,
		TransactionsWindowHours: hours,
	}

	deviceID, pin, err := s.openCredential(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrCredentialNotLinked) {
			return overview, nil
		}
		return nil, err
	}

	since := s.now().UTC().Add(-time.Duration(hours) * time.Hour)

	var (
		accounts []getclient.Account
		payload  string
		txns     []getclient.Transaction
	)
	outcome, err := s.sessions.WithSession(ctx, userID, deviceID, pin, func(sessionID string) error {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			accounts, err = s.client.FetchAccounts(gctx, sessionID)
			return err
		})
		g.Go(func() error {
			var err error
			payload, err = s.client.FetchBarcodePayload(gctx, sessionID)
			return err
		})
		g.Go(func() error {
			var err error
			txns, err = s.client.FetchTransactionsSince(gctx, sessionID, since)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		s.logger.Error("failed to load GET overview", slog.String("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	s.touch(ctx, userID, outcome)

	sortTransactionsNewestFirst(txns)
	if len(txns) > limit {
		txns = txns[:limit]
	}

	overview.Connected = true
	overview.Accounts = accounts
	overview.TotalGetBalance = totalTenderBalance(accounts)
	overview.BarcodePayload = payload
	overview.Transactions = txns
	overview.ReturnedTransactions = len(txns)
	overview.FetchedAt = s.now().UTC()
	if outcome.Recovered {
		overview.Warning = RecoveredWarning
	}
	return overview, nil
}

// openCredential loads and decrypts the user's stored device credential.
func (s *CredentialService) openCredential(ctx context.Context, userID string) (deviceID, pin string, err error) {
	cred, err := s.credentials.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", "", models.ErrCredentialNotLinked
		}
		s.logger.Error("failed to get credential", slog.String("user_id", userID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}

	deviceID, pin, err = decryptCredential(s.cipher, cred)
	if err != nil {
		s.logger.Error("failed to open credential", slog.String("user_id", userID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}
	return deviceID, pin, nil
}

func (s *CredentialService) touch(ctx context.Context, userID string, outcome SessionOutcome) {
	if !outcome.Live {
		return
	}
	if err := s.credentials.TouchValidated(ctx, userID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to record credential validation", slog.String("user_id", userID), slog.Any("error", err))
	}
}

func clampWindow(value, fallback, upper int) int {
	if value <= 0 {
		return fallback
	}
	if value > upper {
		return upper
	}
	return value
}

// totalTenderBalance sums balances of accounts that can currently pay.
func totalTenderBalance(accounts []getclient.Account) float64 {
	var total float64
	for _, a := range accounts {
		if a.IsActive && a.IsAccountTenderActive && a.Balance != nil {
			total += *a.Balance
		}
	}
	return total
}

// sortTransactionsNewestFirst orders by actualDate; unparseable dates sort last.
func sortTransactionsNewestFirst(txns []getclient.Transaction) {
	parsed := make(map[string]time.Time, len(txns))
	for _, t := range txns {
		if at, err := time.Parse(time.RFC3339, t.ActualDate); err == nil {
			parsed[t.ActualDate] = at
		}
	}
	sort.SliceStable(txns, func(i, j int) bool {
		return parsed[txns[i].ActualDate].After(parsed[txns[j].ActualDate])
	})
}
