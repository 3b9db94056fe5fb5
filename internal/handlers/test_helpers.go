package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"github.com/pointshare/redeem/internal/auth"
	"github.com/pointshare/redeem/internal/models"
	"github.com/pointshare/redeem/internal/services"
	pkghttp "github.com/pointshare/redeem/pkg/http"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAuthContext adds user claims to request context for testing authenticated endpoints
func WithAuthContext(req *http.Request, userID string) *http.Request {
	claims := &models.TokenClaims{
		UserID: userID,
		Email:  userID + "@campus.test",
		Type:   auth.TokenTypeAccess,
	}
	return req.WithContext(auth.WithUser(req.Context(), claims))
}

// WithChiRouteContext adds chi URL parameters to request context for testing
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks status, human-readable message and machine code
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode, expectedMessage string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedCode, resp.Code, "Error code mismatch")
	assert.Equal(t, expectedMessage, resp.Error, "Error message mismatch")
}

// MockRequestService implements RequestService for testing
type MockRequestService struct {
	CreateFunc      func(ctx context.Context, requesterID string, points int, location string, message *string) (*models.Request, error)
	GetFunc         func(ctx context.Context, userID, requestID string) (*models.Request, error)
	ListForUserFunc func(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error)
	DeclineFunc     func(ctx context.Context, requestID, donorID string) error
}

func (m *MockRequestService) Create(ctx context.Context, requesterID string, points int, location string, message *string) (*models.Request, error) {
	if m.CreateFunc == nil {
		return nil, models.ErrInternalServer
	}
	return m.CreateFunc(ctx, requesterID, points, location, message)
}

func (m *MockRequestService) Get(ctx context.Context, userID, requestID string) (*models.Request, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, userID, requestID)
}

func (m *MockRequestService) ListForUser(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error) {
	if m.ListForUserFunc == nil {
		return []*models.Request{}, nil
	}
	return m.ListForUserFunc(ctx, userID, role, limit)
}

func (m *MockRequestService) Decline(ctx context.Context, requestID, donorID string) error {
	if m.DeclineFunc == nil {
		return nil
	}
	return m.DeclineFunc(ctx, requestID, donorID)
}

// MockAcceptanceService implements AcceptanceService for testing
type MockAcceptanceService struct {
	AcceptFunc func(ctx context.Context, requestID, donorID string, override *string) (*models.AcceptResult, error)
}

func (m *MockAcceptanceService) Accept(ctx context.Context, requestID, donorID string, override *string) (*models.AcceptResult, error) {
	if m.AcceptFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.AcceptFunc(ctx, requestID, donorID, override)
}

// MockRedemptionService implements RedemptionService for testing
type MockRedemptionService struct {
	ScanFunc func(ctx context.Context, requestID, userID string) (models.ScanState, error)
}

func (m *MockRedemptionService) Scan(ctx context.Context, requestID, userID string) (models.ScanState, error) {
	if m.ScanFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.ScanFunc(ctx, requestID, userID)
}

// MockCredentialService implements CredentialService for testing
type MockCredentialService struct {
	StatusFunc         func(ctx context.Context, userID string) (*models.CredentialStatus, error)
	LinkFunc           func(ctx context.Context, userID, validatedURL string) error
	UnlinkFunc         func(ctx context.Context, userID string) error
	SetDefaultModeFunc func(ctx context.Context, userID, raw string) (models.FulfillmentMode, error)
	BarcodePayloadFunc func(ctx context.Context, userID string) (*services.BarcodePayload, error)
	OverviewFunc       func(ctx context.Context, userID string, hours, limit int) (*services.CredentialOverview, error)
}

func (m *MockCredentialService) Status(ctx context.Context, userID string) (*models.CredentialStatus, error) {
	if m.StatusFunc == nil {
		return &models.CredentialStatus{DefaultFulfillmentMode: models.DefaultFulfillmentMode}, nil
	}
	return m.StatusFunc(ctx, userID)
}

func (m *MockCredentialService) Link(ctx context.Context, userID, validatedURL string) error {
	if m.LinkFunc == nil {
		return nil
	}
	return m.LinkFunc(ctx, userID, validatedURL)
}

func (m *MockCredentialService) Unlink(ctx context.Context, userID string) error {
	if m.UnlinkFunc == nil {
		return nil
	}
	return m.UnlinkFunc(ctx, userID)
}

func (m *MockCredentialService) SetDefaultMode(ctx context.Context, userID, raw string) (models.FulfillmentMode, error) {
	if m.SetDefaultModeFunc == nil {
		return models.FulfillmentMode(raw), nil
	}
	return m.SetDefaultModeFunc(ctx, userID, raw)
}

func (m *MockCredentialService) BarcodePayload(ctx context.Context, userID string) (*services.BarcodePayload, error) {
	if m.BarcodePayloadFunc == nil {
		return nil, models.ErrCredentialNotLinked
	}
	return m.BarcodePayloadFunc(ctx, userID)
}

func (m *MockCredentialService) Overview(ctx context.Context, userID string, hours, limit int) (*services.CredentialOverview, error) {
	if m.OverviewFunc == nil {
		return &services.CredentialOverview{}, nil
	}
	return m.OverviewFunc(ctx, userID, hours, limit)
}

// MockPointsService implements PointsService for testing
type MockPointsService struct {
	BalanceFunc func(ctx context.Context, userID string) (*models.Points, error)
}

func (m *MockPointsService) Balance(ctx context.Context, userID string) (*models.Points, error) {
	if m.BalanceFunc == nil {
		return &models.Points{UserID: userID}, nil
	}
	return m.BalanceFunc(ctx, userID)
}

// MockNotificationService implements NotificationService for testing
type MockNotificationService struct {
	ListFunc    func(ctx context.Context, userID string) ([]*models.Notification, error)
	SetReadFunc func(ctx context.Context, userID, id string, read bool) (*models.Notification, error)
}

func (m *MockNotificationService) List(ctx context.Context, userID string) ([]*models.Notification, error) {
	if m.ListFunc == nil {
		return []*models.Notification{}, nil
	}
	return m.ListFunc(ctx, userID)
}

func (m *MockNotificationService) SetRead(ctx context.Context, userID, id string, read bool) (*models.Notification, error) {
	if m.SetReadFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.SetReadFunc(ctx, userID, id, read)
}
