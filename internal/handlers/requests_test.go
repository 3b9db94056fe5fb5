package handlers_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointshare/redeem/internal/handlers"
	"github.com/pointshare/redeem/internal/models"
)

func newRequestHandler(requests *handlers.MockRequestService, acceptance *handlers.MockAcceptanceService, redemption *handlers.MockRedemptionService) *handlers.RequestHandler {
	if requests == nil {
		requests = &handlers.MockRequestService{}
	}
	if acceptance == nil {
		acceptance = &handlers.MockAcceptanceService{}
	}
	if redemption == nil {
		redemption = &handlers.MockRedemptionService{}
	}
	return handlers.NewRequestHandler(requests, acceptance, redemption)
}

func TestCreateRequest_Success(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock := &handlers.MockRequestService{
		CreateFunc: func(ctx context.Context, requesterID string, points int, location string, message *string) (*models.Request, error) {
			assert.Equal(t, "requester-1", requesterID)
			assert.Equal(t, 20, points)
			assert.Equal(t, "North Dining Hall", location)
			return &models.Request{
				ID:              "req-1",
				RequesterID:     requesterID,
				PointsRequested: points,
				Location:        location,
				Status:          models.RequestPending,
				CreatedAt:       now,
				UpdatedAt:       now,
			}, nil
		},
	}

	handler := newRequestHandler(mock, nil, nil)
	req := handlers.NewTestRequest(t, http.MethodPost, "/requests", map[string]any{
		"pointsRequested": 20,
		"location":        "North Dining Hall",
	})
	req = handlers.WithAuthContext(req, "requester-1")

	w := httptest.NewRecorder()
	handler.CreateRequest(w, req)

	var resp handlers.RequestResponse
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	assert.Equal(t, "req-1", resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.Nil(t, resp.DonorID)
	assert.Nil(t, resp.FulfillmentMode)
}

func TestCreateRequest_ValidationFailure(t *testing.T) {
	handler := newRequestHandler(nil, nil, nil)
	req := handlers.NewTestRequest(t, http.MethodPost, "/requests", map[string]any{
		"pointsRequested": 0,
		"location":        "North Dining Hall",
	})
	req = handlers.WithAuthContext(req, "requester-1")

	w := httptest.NewRecorder()
	handler.CreateRequest(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRequest_Unauthorized(t *testing.T) {
	handler := newRequestHandler(nil, nil, nil)
	req := handlers.NewTestRequest(t, http.MethodPost, "/requests", map[string]any{"pointsRequested": 5, "location": "x"})

	w := httptest.NewRecorder()
	handler.CreateRequest(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
}

func TestListRequests_RoleAndLimit(t *testing.T) {
	mock := &handlers.MockRequestService{
		ListForUserFunc: func(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error) {
			assert.Equal(t, models.RoleOpen, role)
			assert.Equal(t, 10, limit)
			return []*models.Request{{ID: "req-1", Status: models.RequestPending}}, nil
		},
	}

	handler := newRequestHandler(mock, nil, nil)
	req := handlers.NewTestRequest(t, http.MethodGet, "/requests?role=open&limit=10", nil)
	req = handlers.WithAuthContext(req, "donor-1")

	w := httptest.NewRecorder()
	handler.ListRequests(w, req)

	var resp handlers.ListRequestsResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, 1, resp.Total)
}

func TestListRequests_InvalidRole(t *testing.T) {
	handler := newRequestHandler(nil, nil, nil)
	req := handlers.NewTestRequest(t, http.MethodGet, "/requests?role=admin", nil)
	req = handlers.WithAuthContext(req, "donor-1")

	w := httptest.NewRecorder()
	handler.ListRequests(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request", "Invalid role parameter")
}

func TestGetRequest_Forbidden(t *testing.T) {
	mock := &handlers.MockRequestService{
		GetFunc: func(ctx context.Context, userID, requestID string) (*models.Request, error) {
			return nil, models.ErrForbidden
		},
	}

	handler := newRequestHandler(mock, nil, nil)
	req := handlers.NewTestRequest(t, http.MethodGet, "/requests/req-1", nil)
	req = handlers.WithAuthContext(req, "stranger")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

	w := httptest.NewRecorder()
	handler.GetRequest(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusForbidden, "forbidden", "Forbidden")
}

func TestAcceptRequest_TransferResponse(t *testing.T) {
	before := 20
	mock := &handlers.MockAcceptanceService{
		AcceptFunc: func(ctx context.Context, requestID, donorID string, override *string) (*models.AcceptResult, error) {
			assert.Equal(t, "req-1", requestID)
			assert.Equal(t, "donor-1", donorID)
			require.NotNil(t, override)
			assert.Equal(t, "TRANSFER_ONLY", *override)
			return &models.AcceptResult{
				Mode:               models.FulfillmentTransferOnly,
				TransferredPoints:  5,
				DonorBalanceBefore: &before,
			}, nil
		},
	}

	handler := newRequestHandler(nil, mock, nil)
	req := handlers.NewTestRequest(t, http.MethodPost, "/requests/req-1/accept", map[string]any{
		"fulfillmentModeOverride": "TRANSFER_ONLY",
	})
	req = handlers.WithAuthContext(req, "donor-1")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

	w := httptest.NewRecorder()
	handler.AcceptRequest(w, req)

	var resp handlers.AcceptResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "TRANSFER_ONLY", resp.FulfillmentMode)
	assert.Equal(t, 5, resp.TransferredPoints)
	require.NotNil(t, resp.DonorBalanceBeforeTransfer)
	assert.Equal(t, 20, *resp.DonorBalanceBeforeTransfer)
}

func TestAcceptRequest_EmptyBodyUsesStoredDefault(t *testing.T) {
	mock := &handlers.MockAcceptanceService{
		AcceptFunc: func(ctx context.Context, requestID, donorID string, override *string) (*models.AcceptResult, error) {
			assert.Nil(t, override)
			return &models.AcceptResult{Mode: models.FulfillmentCodeOnly}, nil
		},
	}

	handler := newRequestHandler(nil, mock, nil)
	req := httptest.NewRequest(http.MethodPost, "/requests/req-1/accept", nil)
	req = handlers.WithAuthContext(req, "donor-1")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

	w := httptest.NewRecorder()
	handler.AcceptRequest(w, req)

	var resp map[string]any
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "CODE_ONLY", resp["fulfillmentMode"])
	assert.EqualValues(t, 0, resp["transferredPoints"])
	assert.Contains(t, resp, "donorBalanceBeforeTransfer")
	assert.Nil(t, resp["donorBalanceBeforeTransfer"])
}

func TestAcceptRequest_ChunkedEmptyBodyUsesStoredDefault(t *testing.T) {
	called := false
	mock := &handlers.MockAcceptanceService{
		AcceptFunc: func(ctx context.Context, requestID, donorID string, override *string) (*models.AcceptResult, error) {
			called = true
			assert.Nil(t, override)
			return &models.AcceptResult{Mode: models.FulfillmentTransferOnly, TransferredPoints: 5}, nil
		},
	}

	handler := newRequestHandler(nil, mock, nil)
	req := httptest.NewRequest(http.MethodPost, "/requests/req-1/accept", io.NopCloser(strings.NewReader("")))
	req.ContentLength = -1
	req = handlers.WithAuthContext(req, "donor-1")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

	w := httptest.NewRecorder()
	handler.AcceptRequest(w, req)

	var resp map[string]any
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.True(t, called)
	assert.Equal(t, "TRANSFER_ONLY", resp["fulfillmentMode"])
}

func TestAcceptRequest_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"invalid mode", models.ErrInvalidFulfillmentMode, http.StatusBadRequest, "invalid_fulfillment_mode", "Invalid fulfillment mode"},
		{"not linked", models.ErrPreconditionFailed, http.StatusBadRequest, "get_not_connected", "Connect your GET account before using code fulfillment"},
		{"own request", models.ErrInvalidOperation, http.StatusBadRequest, "bad_request", "You cannot accept your own request"},
		{"insufficient", models.ErrInsufficientBalance, http.StatusBadRequest, "insufficient_balance", "Insufficient points balance"},
		{"not pending", models.ErrConflict, http.StatusConflict, "conflict", "Request is no longer pending"},
		{"unknown donor", models.ErrUserNotFound, http.StatusNotFound, "not_found", "User not found"},
		{"unknown request", models.ErrNotFound, http.StatusNotFound, "not_found", "Request not found"},
		{"store failure", models.ErrInternalServer, http.StatusInternalServerError, "internal_error", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockAcceptanceService{
				AcceptFunc: func(ctx context.Context, requestID, donorID string, override *string) (*models.AcceptResult, error) {
					return nil, tt.err
				},
			}
			handler := newRequestHandler(nil, mock, nil)
			req := handlers.NewTestRequest(t, http.MethodPost, "/requests/req-1/accept", map[string]any{})
			req = handlers.WithAuthContext(req, "donor-1")
			req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

			w := httptest.NewRecorder()
			handler.AcceptRequest(w, req)

			handlers.AssertErrorResponse(t, w, tt.status, tt.code, tt.message)
		})
	}
}

func TestAcceptRequest_MalformedBody(t *testing.T) {
	handler := newRequestHandler(nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/requests/req-1/accept", strings.NewReader("{"))
	req = handlers.WithAuthContext(req, "donor-1")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

	w := httptest.NewRecorder()
	handler.AcceptRequest(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request", "Invalid request body")
}

func TestDeclineRequest(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		handler := newRequestHandler(&handlers.MockRequestService{}, nil, nil)
		req := handlers.NewTestRequest(t, http.MethodPost, "/requests/req-1/decline", nil)
		req = handlers.WithAuthContext(req, "donor-1")
		req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

		w := httptest.NewRecorder()
		handler.DeclineRequest(w, req)

		var resp map[string]bool
		handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.True(t, resp["success"])
	})

	t.Run("not pending", func(t *testing.T) {
		mock := &handlers.MockRequestService{
			DeclineFunc: func(ctx context.Context, requestID, donorID string) error {
				return models.ErrConflict
			},
		}
		handler := newRequestHandler(mock, nil, nil)
		req := handlers.NewTestRequest(t, http.MethodPost, "/requests/req-1/decline", nil)
		req = handlers.WithAuthContext(req, "donor-1")
		req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

		w := httptest.NewRecorder()
		handler.DeclineRequest(w, req)

		handlers.AssertErrorResponse(t, w, http.StatusConflict, "conflict", "Request is no longer pending")
	})
}

func TestScanRequest_States(t *testing.T) {
	expires := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	completed := time.Date(2026, 3, 1, 12, 3, 0, 0, time.UTC)

	tests := []struct {
		name  string
		state models.ScanState
		want  map[string]any
	}{
		{
			name:  "active",
			state: models.ActiveScan{Payload: "payload-1", ExpiresAt: expires, Refresh: 5 * time.Second},
			want: map[string]any{
				"state":     "active",
				"payload":   "payload-1",
				"expiresAt": "2026-03-01T12:15:00Z",
				"refreshMs": float64(5000),
			},
		},
		{
			name:  "completed",
			state: models.CompletedScan{CompletedAt: completed},
			want: map[string]any{
				"state":       "completed",
				"completedAt": "2026-03-01T12:03:00Z",
			},
		},
		{
			name:  "unavailable",
			state: models.UnavailableScan{Reason: models.ReasonDonorUnlinked},
			want: map[string]any{
				"state":  "unavailable",
				"reason": "donor_unlinked",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &handlers.MockRedemptionService{
				ScanFunc: func(ctx context.Context, requestID, userID string) (models.ScanState, error) {
					assert.Equal(t, "req-1", requestID)
					assert.Equal(t, "requester-1", userID)
					return tt.state, nil
				},
			}
			handler := newRequestHandler(nil, nil, mock)
			req := handlers.NewTestRequest(t, http.MethodGet, "/requests/req-1/scan", nil)
			req = handlers.WithAuthContext(req, "requester-1")
			req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

			w := httptest.NewRecorder()
			handler.ScanRequest(w, req)

			require.Equal(t, http.StatusOK, w.Code)
			var got map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanRequest_Forbidden(t *testing.T) {
	mock := &handlers.MockRedemptionService{
		ScanFunc: func(ctx context.Context, requestID, userID string) (models.ScanState, error) {
			return nil, models.ErrForbidden
		},
	}
	handler := newRequestHandler(nil, nil, mock)
	req := handlers.NewTestRequest(t, http.MethodGet, "/requests/req-1/scan", nil)
	req = handlers.WithAuthContext(req, "donor-1")
	req = handlers.WithChiRouteContext(req, map[string]string{"id": "req-1"})

	w := httptest.NewRecorder()
	handler.ScanRequest(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusForbidden, "forbidden", "Only the requester can scan this request")
}
