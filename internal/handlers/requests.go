package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pointshare/redeem/internal/auth"
	"github.com/pointshare/redeem/internal/models"
	pkghttp "github.com/pointshare/redeem/pkg/http"
)

// RequestService defines the interface for the request lifecycle
type RequestService interface {
	Create(ctx context.Context, requesterID string, points int, location string, message *string) (*models.Request, error)
	Get(ctx context.Context, userID, requestID string) (*models.Request, error)
	ListForUser(ctx context.Context, userID string, role models.RequestRole, limit int) ([]*models.Request, error)
	Decline(ctx context.Context, requestID, donorID string) error
}

// AcceptanceService accepts pending requests
type AcceptanceService interface {
	Accept(ctx context.Context, requestID, donorID string, override *string) (*models.AcceptResult, error)
}

// RedemptionService serves the scan state of a request
type RedemptionService interface {
	Scan(ctx context.Context, requestID, userID string) (models.ScanState, error)
}

// RequestHandler handles request lifecycle and redemption endpoints
type RequestHandler struct {
	requests   RequestService
	acceptance AcceptanceService
	redemption RedemptionService
}

// NewRequestHandler creates a new RequestHandler
func NewRequestHandler(requests RequestService, acceptance AcceptanceService, redemption RedemptionService) *RequestHandler {
	return &RequestHandler{
		requests:   requests,
		acceptance: acceptance,
		redemption: redemption,
	}
}

// Request/Response DTOs

// CreateRequestRequest represents the request body for opening a request
type CreateRequestRequest struct {
	PointsRequested int     `json:"pointsRequested" validate:"required,gte=1,lte=10000"`
	Location        string  `json:"location" validate:"required,min=1,max=200"`
	Message         *string `json:"message" validate:"omitempty,max=500"`
}

// AcceptRequestRequest represents the request body for accepting a request.
// A null or absent override uses the donor's stored default.
type AcceptRequestRequest struct {
	FulfillmentModeOverride *string `json:"fulfillmentModeOverride"`
}

// RequestResponse represents a request in the HTTP response
type RequestResponse struct {
	ID                string  `json:"id"`
	RequesterID       string  `json:"requesterId"`
	DonorID           *string `json:"donorId"`
	PointsRequested   int     `json:"pointsRequested"`
	Location          string  `json:"location"`
	Message           *string `json:"message"`
	Status            string  `json:"status"`
	FulfillmentMode   *string `json:"fulfillmentMode"`
	CodeIssuedAt      *string `json:"codeIssuedAt"`
	CodeExpiresAt     *string `json:"codeExpiresAt"`
	CompletedAt       *string `json:"completedAt"`
	CompletionTrigger *string `json:"completionTrigger"`
	CreatedAt         string  `json:"createdAt"`
	UpdatedAt         string  `json:"updatedAt"`
}

// ListRequestsResponse represents a list of requests
type ListRequestsResponse struct {
	Requests []*RequestResponse `json:"requests"`
	Total    int                `json:"total"`
}

// AcceptResponse is returned by a successful acceptance
type AcceptResponse struct {
	Success                    bool   `json:"success"`
	FulfillmentMode            string `json:"fulfillmentMode"`
	TransferredPoints          int    `json:"transferredPoints"`
	DonorBalanceBeforeTransfer *int   `json:"donorBalanceBeforeTransfer"`
}

// ScanResponse is one of the three scan states. Only the fields of the
// reported state are present.
type ScanResponse struct {
	State       string `json:"state"`
	Payload     string `json:"payload,omitempty"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
	RefreshMs   int64  `json:"refreshMs,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// requestModelToResponse converts a request model to a response DTO
func requestModelToResponse(req *models.Request) *RequestResponse {
	resp := &RequestResponse{
		ID:                req.ID,
		RequesterID:       req.RequesterID,
		DonorID:           req.DonorID,
		PointsRequested:   req.PointsRequested,
		Location:          req.Location,
		Message:           req.Message,
		Status:            string(req.Status),
		CodeIssuedAt:      formatTimePtr(req.CodeIssuedAt),
		CodeExpiresAt:     formatTimePtr(req.CodeExpiresAt),
		CompletedAt:       formatTimePtr(req.CompletedAt),
		CompletionTrigger: req.CompletionTrigger,
		CreatedAt:         formatTime(req.CreatedAt),
		UpdatedAt:         formatTime(req.UpdatedAt),
	}
	if req.FulfillmentMode != nil {
		mode := string(*req.FulfillmentMode)
		resp.FulfillmentMode = &mode
	}
	return resp
}

// scanStateToResponse converts a scan state to its wire shape
func scanStateToResponse(state models.ScanState) *ScanResponse {
	switch s := state.(type) {
	case models.ActiveScan:
		return &ScanResponse{
			State:     "active",
			Payload:   s.Payload,
			ExpiresAt: formatTime(s.ExpiresAt),
			RefreshMs: s.Refresh.Milliseconds(),
		}
	case models.CompletedScan:
		return &ScanResponse{State: "completed", CompletedAt: formatTime(s.CompletedAt)}
	case models.UnavailableScan:
		return &ScanResponse{State: "unavailable", Reason: string(s.Reason)}
	}
	return &ScanResponse{State: "unavailable", Reason: string(models.ReasonNotAccepted)}
}

// CreateRequest opens a new request for the caller
//
// @Summary Create a request
// @Accept json
// @Param request body CreateRequestRequest true "Create request"
// @Produce json
// @Success 201 {object} RequestResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /requests [post]
func (h *RequestHandler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req CreateRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	created, err := h.requests.Create(r.Context(), claims.UserID, req.PointsRequested, req.Location, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Invalid request")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, requestModelToResponse(created))
}

// ListRequests lists requests by the caller's role
//
// @Summary List requests
// @Param role query string false "requester, donor or open" default(requester)
// @Param limit query int false "Limit (default 50)"
// @Produce json
// @Success 200 {object} ListRequestsResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /requests [get]
func (h *RequestHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	role := models.RoleRequester
	if raw := r.URL.Query().Get("role"); raw != "" {
		role = models.RequestRole(raw)
		if !role.Valid() {
			pkghttp.WriteBadRequest(w, "Invalid role parameter")
			return
		}
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			pkghttp.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	reqs, err := h.requests.ListForUser(r.Context(), claims.UserID, role, limit)
	if err != nil {
		pkghttp.WriteInternalError(w)
		return
	}

	response := &ListRequestsResponse{
		Requests: make([]*RequestResponse, len(reqs)),
		Total:    len(reqs),
	}
	for i, req := range reqs {
		response.Requests[i] = requestModelToResponse(req)
	}
	pkghttp.WriteJSON(w, http.StatusOK, response)
}

// GetRequest returns a request to one of its participants
//
// @Summary Get request by ID
// @Param id path string true "Request ID"
// @Produce json
// @Success 200 {object} RequestResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /requests/{id} [get]
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	req, err := h.requests.Get(r.Context(), claims.UserID, chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Request not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Forbidden")
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, requestModelToResponse(req))
}

// AcceptRequest accepts a pending request as the caller
//
// @Summary Accept a request
// @Accept json
// @Param id path string true "Request ID"
// @Param request body AcceptRequestRequest false "Fulfillment mode override"
// @Produce json
// @Success 200 {object} AcceptResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /requests/{id}/accept [post]
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	// An empty body, chunked or not, means the donor's stored default.
	var req AcceptRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	result, err := h.acceptance.Accept(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.FulfillmentModeOverride)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidFulfillmentMode):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_fulfillment_mode", "Invalid fulfillment mode")
		case errors.Is(err, models.ErrPreconditionFailed):
			pkghttp.WriteError(w, http.StatusBadRequest, "get_not_connected", "Connect your GET account before using code fulfillment")
		case errors.Is(err, models.ErrInvalidOperation):
			pkghttp.WriteBadRequest(w, "You cannot accept your own request")
		case errors.Is(err, models.ErrInsufficientBalance):
			pkghttp.WriteError(w, http.StatusBadRequest, "insufficient_balance", "Insufficient points balance")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Request is no longer pending")
		case errors.Is(err, models.ErrUserNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Request not found")
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &AcceptResponse{
		Success:                    true,
		FulfillmentMode:            string(result.Mode),
		TransferredPoints:          result.TransferredPoints,
		DonorBalanceBeforeTransfer: result.DonorBalanceBefore,
	})
}

// DeclineRequest declines a pending request as the caller
//
// @Summary Decline a request
// @Param id path string true "Request ID"
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Failure 409 {object} pkghttp.ErrorResponse
// @Router /requests/{id}/decline [post]
func (h *RequestHandler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	err := h.requests.Decline(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidOperation):
			pkghttp.WriteBadRequest(w, "You cannot decline your own request")
		case errors.Is(err, models.ErrUserNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		case errors.Is(err, models.ErrConflict):
			pkghttp.WriteConflict(w, "Request is no longer pending")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Request not found")
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// ScanRequest reports the redemption state of a request to its requester
//
// @Summary Poll the redemption code
// @Param id path string true "Request ID"
// @Produce json
// @Success 200 {object} ScanResponse
// @Failure 403 {object} pkghttp.ErrorResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /requests/{id}/scan [get]
func (h *RequestHandler) ScanRequest(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	state, err := h.redemption.Scan(r.Context(), chi.URLParam(r, "id"), claims.UserID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "Request not found")
		case errors.Is(err, models.ErrForbidden):
			pkghttp.WriteForbidden(w, "Only the requester can scan this request")
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, scanStateToResponse(state))
}
