package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pointshare/redeem/internal/events"
	"github.com/pointshare/redeem/internal/getclient"
	"github.com/pointshare/redeem/internal/models"
)

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc           func(ctx context.Context, id string) (*models.User, error)
	GetDonorProfileFunc   func(ctx context.Context, id string) (*models.DonorProfile, error)
	UpdateDefaultModeFunc func(ctx context.Context, id string, mode models.FulfillmentMode) (*models.User, error)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetDonorProfile(ctx context.Context, id string) (*models.DonorProfile, error) {
	if m.GetDonorProfileFunc != nil {
		return m.GetDonorProfileFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) UpdateDefaultMode(ctx context.Context, id string, mode models.FulfillmentMode) (*models.User, error) {
	if m.UpdateDefaultModeFunc != nil {
		return m.UpdateDefaultModeFunc(ctx, id, mode)
	}
	return nil, models.ErrNotFound
}

// MockCredentialRepository implements CredentialRepository for testing
type MockCredentialRepository struct {
	GetByUserIDFunc    func(ctx context.Context, userID string) (*models.Credential, error)
	UpsertFunc         func(ctx context.Context, c *models.Credential) error
	TouchValidatedFunc func(ctx context.Context, userID string, at time.Time) error
	DeleteFunc         func(ctx context.Context, userID string) error
}

func (m *MockCredentialRepository) GetByUserID(ctx context.Context, userID string) (*models.Credential, error) {
	if m.GetByUserIDFunc != nil {
		return m.GetByUserIDFunc(ctx, userID)
	}
	return nil, models.ErrNotFound
}

func (m *MockCredentialRepository) Upsert(ctx context.Context, c *models.Credential) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, c)
	}
	return nil
}

func (m *MockCredentialRepository) TouchValidated(ctx context.Context, userID string, at time.Time) error {
	if m.TouchValidatedFunc != nil {
		return m.TouchValidatedFunc(ctx, userID, at)
	}
	return nil
}

func (m *MockCredentialRepository) Delete(ctx context.Context, userID string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

// MockPointsRepository implements PointsRepository for testing
type MockPointsRepository struct {
	GetOrCreateFunc func(ctx context.Context, userID string) (*models.Points, error)
}

func (m *MockPointsRepository) GetOrCreate(ctx context.Context, userID string) (*models.Points, error) {
	if m.GetOrCreateFunc != nil {
		return m.GetOrCreateFunc(ctx, userID)
	}
	return &models.Points{UserID: userID}, nil
}

// MockRequestRepository implements RequestRepository for testing
type MockRequestRepository struct {
	CreateFunc        func(ctx context.Context, req *models.Request) (*models.Request, error)
	GetByIDFunc       func(ctx context.Context, id string) (*models.Request, error)
	ListForUserFunc   func(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error)
	ArmCodeWindowFunc func(ctx context.Context, id string, issuedAt *time.Time, expiresAt time.Time) (*models.Request, error)
}

func (m *MockRequestRepository) Create(ctx context.Context, req *models.Request) (*models.Request, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, req)
	}
	return nil, models.ErrInternalServer
}

func (m *MockRequestRepository) GetByID(ctx context.Context, id string) (*models.Request, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockRequestRepository) ListForUser(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error) {
	if m.ListForUserFunc != nil {
		return m.ListForUserFunc(ctx, userID, role, limit)
	}
	return []*models.Request{}, nil
}

func (m *MockRequestRepository) ArmCodeWindow(ctx context.Context, id string, issuedAt *time.Time, expiresAt time.Time) (*models.Request, error) {
	if m.ArmCodeWindowFunc != nil {
		return m.ArmCodeWindowFunc(ctx, id, issuedAt, expiresAt)
	}
	return nil, models.ErrConflict
}

// MockNotificationRepository implements NotificationRepository for testing
type MockNotificationRepository struct {
	ListByUserFunc func(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	SetReadFunc    func(ctx context.Context, id, userID string, read bool) (*models.Notification, error)
}

func (m *MockNotificationRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	if m.ListByUserFunc != nil {
		return m.ListByUserFunc(ctx, userID, limit)
	}
	return []*models.Notification{}, nil
}

func (m *MockNotificationRepository) SetRead(ctx context.Context, id, userID string, read bool) (*models.Notification, error) {
	if m.SetReadFunc != nil {
		return m.SetReadFunc(ctx, id, userID, read)
	}
	return nil, models.ErrNotFound
}

// MockUnitOfWork records committed operations. CommitFunc, when set, decides
// the outcome; committed ops are recorded only on success.
type MockUnitOfWork struct {
	CommitFunc func(ctx context.Context, ops ...models.Operation) error

	mu        sync.Mutex
	Committed [][]models.Operation
}

func (m *MockUnitOfWork) Commit(ctx context.Context, ops ...models.Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.CommitFunc != nil {
		if err := m.CommitFunc(ctx, ops...); err != nil {
			return err
		}
	}
	m.Committed = append(m.Committed, ops)
	return nil
}

// PendingGuardUnitOfWork emulates the conditional status update of the real
// unit of work: only the first AcceptRequest/DeclineRequest per request wins.
type PendingGuardUnitOfWork struct {
	mu       sync.Mutex
	accepted map[string]bool
	Balances map[string]int
}

func NewPendingGuardUnitOfWork(balances map[string]int) *PendingGuardUnitOfWork {
	return &PendingGuardUnitOfWork{
		accepted: make(map[string]bool),
		Balances: balances,
	}
}

func (u *PendingGuardUnitOfWork) Commit(_ context.Context, ops ...models.Operation) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	balances := make(map[string]int, len(u.Balances))
	for k, v := range u.Balances {
		balances[k] = v
	}
	claimed := []string{}

	for _, op := range ops {
		switch op := op.(type) {
		case models.AdjustPoints:
			balances[op.UserID] += op.Delta
			if balances[op.UserID] < 0 {
				return models.ErrInsufficientBalance
			}
		case models.AcceptRequest:
			if u.accepted[op.RequestID] {
				return models.ErrConflict
			}
			claimed = append(claimed, op.RequestID)
		case models.DeclineRequest:
			if u.accepted[op.RequestID] {
				return models.ErrConflict
			}
			claimed = append(claimed, op.RequestID)
		}
	}

	for _, id := range claimed {
		u.accepted[id] = true
	}
	u.Balances = balances
	return nil
}

// MockCommerceClient implements CommerceClient for testing
type MockCommerceClient struct {
	AuthenticateFunc           func(ctx context.Context, deviceID, pin string) (string, error)
	CreateDeviceCredentialFunc func(ctx context.Context, sessionID, deviceID, pin string) (bool, error)
	RevokeDeviceCredentialFunc func(ctx context.Context, sessionID, deviceID string) (bool, error)
	FetchBarcodePayloadFunc    func(ctx context.Context, sessionID string) (string, error)
	FetchTransactionsSinceFunc func(ctx context.Context, sessionID string, since time.Time) ([]getclient.Transaction, error)
	FetchAccountsFunc          func(ctx context.Context, sessionID string) ([]getclient.Account, error)

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockCommerceClient) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// Calls returns how many times method was invoked.
func (m *MockCommerceClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockCommerceClient) Authenticate(ctx context.Context, deviceID, pin string) (string, error) {
	m.record("Authenticate")
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, deviceID, pin)
	}
	return "session-live", nil
}

func (m *MockCommerceClient) CreateDeviceCredential(ctx context.Context, sessionID, deviceID, pin string) (bool, error) {
	m.record("CreateDeviceCredential")
	if m.CreateDeviceCredentialFunc != nil {
		return m.CreateDeviceCredentialFunc(ctx, sessionID, deviceID, pin)
	}
	return true, nil
}

func (m *MockCommerceClient) RevokeDeviceCredential(ctx context.Context, sessionID, deviceID string) (bool, error) {
	m.record("RevokeDeviceCredential")
	if m.RevokeDeviceCredentialFunc != nil {
		return m.RevokeDeviceCredentialFunc(ctx, sessionID, deviceID)
	}
	return true, nil
}

func (m *MockCommerceClient) FetchBarcodePayload(ctx context.Context, sessionID string) (string, error) {
	m.record("FetchBarcodePayload")
	if m.FetchBarcodePayloadFunc != nil {
		return m.FetchBarcodePayloadFunc(ctx, sessionID)
	}
	return "payload-1", nil
}

func (m *MockCommerceClient) FetchTransactionsSince(ctx context.Context, sessionID string, since time.Time) ([]getclient.Transaction, error) {
	m.record("FetchTransactionsSince")
	if m.FetchTransactionsSinceFunc != nil {
		return m.FetchTransactionsSinceFunc(ctx, sessionID, since)
	}
	return nil, nil
}

func (m *MockCommerceClient) FetchAccounts(ctx context.Context, sessionID string) ([]getclient.Account, error) {
	m.record("FetchAccounts")
	if m.FetchAccountsFunc != nil {
		return m.FetchAccountsFunc(ctx, sessionID)
	}
	return nil, nil
}

// MockSecretCipher wraps plaintext in a readable envelope.
type MockSecretCipher struct {
	Err error
}

func (m *MockSecretCipher) Encrypt(plaintext string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return "enc:" + plaintext, nil
}

func (m *MockSecretCipher) Decrypt(envelope string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	plaintext, ok := strings.CutPrefix(envelope, "enc:")
	if !ok {
		return "", models.ErrMalformedEnvelope
	}
	return plaintext, nil
}

// MockPublisher records published events
type MockPublisher struct {
	Err error

	mu     sync.Mutex
	Events []events.Event
}

func (m *MockPublisher) Publish(_ context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
	return m.Err
}

// Helper functions for creating test data

func NewTestUser(id, email, name string) *models.User {
	return &models.User{
		ID:                     id,
		Email:                  email,
		Name:                   name,
		DefaultFulfillmentMode: models.DefaultFulfillmentMode,
		CreatedAt:              time.Now(),
		UpdatedAt:              time.Now(),
	}
}

func NewTestCredential(userID string) *models.Credential {
	return &models.Credential{
		UserID:            userID,
		EncryptedDeviceID: "enc:device-" + userID,
		EncryptedPIN:      "enc:1234",
		LastValidatedAt:   time.Now().Add(-time.Hour),
	}
}

func NewTestRequest(id, requesterID string, points int) *models.Request {
	return &models.Request{
		ID:              id,
		RequesterID:     requesterID,
		PointsRequested: points,
		Location:        "North Dining Hall",
		Status:          models.RequestPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
}

// NewTestAcceptedRequest returns a request accepted by donorID in mode with
// a code window issued at issuedAt.
func NewTestAcceptedRequest(id, requesterID, donorID string, mode models.FulfillmentMode, issuedAt time.Time, ttl time.Duration) *models.Request {
	req := NewTestRequest(id, requesterID, 5)
	req.Status = models.RequestAccepted
	req.DonorID = &donorID
	req.FulfillmentMode = &mode
	if mode.RequiresCode() {
		expires := issuedAt.Add(ttl)
		req.CodeIssuedAt = &issuedAt
		req.CodeExpiresAt = &expires
	}
	return req
}
