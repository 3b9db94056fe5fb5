package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/pointshare/redeem/internal/auth"
	"github.com/pointshare/redeem/internal/getclient"
	"github.com/pointshare/redeem/internal/models"
	"github.com/pointshare/redeem/internal/services"
	pkghttp "github.com/pointshare/redeem/pkg/http"
)

const connectFirstMessage = "Connect GET first at /dashboard"

// CredentialService defines the interface for managing a linked GET account
type CredentialService interface {
	Status(ctx context.Context, userID string) (*models.CredentialStatus, error)
	Link(ctx context.Context, userID, validatedURL string) error
	Unlink(ctx context.Context, userID string) error
	SetDefaultMode(ctx context.Context, userID, raw string) (models.FulfillmentMode, error)
	BarcodePayload(ctx context.Context, userID string) (*services.BarcodePayload, error)
	Overview(ctx context.Context, userID string, hours, limit int) (*services.CredentialOverview, error)
}

// CredentialHandler handles GET account linking endpoints
type CredentialHandler struct {
	service CredentialService
}

// NewCredentialHandler creates a new CredentialHandler
func NewCredentialHandler(service CredentialService) *CredentialHandler {
	return &CredentialHandler{
		service: service,
	}
}

// LinkCredentialRequest carries the URL GET redirected to after the user
// signed in
type LinkCredentialRequest struct {
	ValidatedURL string `json:"validatedUrl"`
}

// UpdateModeRequest represents the request body for changing the default mode
type UpdateModeRequest struct {
	DefaultFulfillmentMode string `json:"defaultFulfillmentMode" validate:"required"`
}

type CredentialStatusResponse struct {
	Connected              bool    `json:"connected"`
	DefaultFulfillmentMode string  `json:"defaultFulfillmentMode"`
	LastValidatedAt        *string `json:"lastValidatedAt"`
}

type ConnectedResponse struct {
	Connected bool `json:"connected"`
}

type BarcodePayloadResponse struct {
	Payload   string `json:"payload"`
	FetchedAt string `json:"fetchedAt"`
	Length    int    `json:"length"`
}

type OverviewResponse struct {
	Connected               bool                    `json:"connected"`
	AppBalance              int                     `json:"appBalance"`
	TotalGetBalance         float64                 `json:"totalGetBalance"`
	BarcodePayload          string                  `json:"barcodePayload"`
	Accounts                []getclient.Account     `json:"accounts"`
	Transactions            []getclient.Transaction `json:"transactions"`
	TransactionsWindowHours int                     `json:"transactionsWindowHours"`
	ReturnedTransactions    int                     `json:"returnedTransactions"`
	FetchedAt               string                  `json:"fetchedAt"`
	Warning                 *string                 `json:"warning"`
}

// DisconnectedOverviewResponse is returned when the caller has no GET account
type DisconnectedOverviewResponse struct {
	Connected  bool   `json:"connected"`
	AppBalance int    `json:"appBalance"`
	Error      string `json:"error"`
}

// GetStatus reports whether the caller has linked a GET account
//
// @Summary GET account status
// @Produce json
// @Success 200 {object} CredentialStatusResponse
// @Router /get-credential [get]
func (h *CredentialHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	status, err := h.service.Status(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &CredentialStatusResponse{
		Connected:              status.Connected,
		DefaultFulfillmentMode: string(status.DefaultFulfillmentMode),
		LastValidatedAt:        formatTimePtr(status.LastValidatedAt),
	})
}

// Link registers a device credential with GET for the caller
//
// @Summary Connect a GET account
// @Accept json
// @Param request body LinkCredentialRequest true "Validated URL"
// @Produce json
// @Success 200 {object} ConnectedResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Failure 500 {object} pkghttp.ErrorResponse
// @Router /get-credential [post]
func (h *CredentialHandler) Link(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req LinkCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if req.ValidatedURL == "" {
		pkghttp.WriteBadRequest(w, "validatedUrl is required")
		return
	}

	if err := h.service.Link(r.Context(), claims.UserID, req.ValidatedURL); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidValidatedURL):
			pkghttp.WriteBadRequest(w, "Could not parse validated GET session token from URL")
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Failed to create GET device credentials")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to connect GET account")
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &ConnectedResponse{Connected: true})
}

// Unlink forgets the caller's GET account. It succeeds even when GET cannot
// be reached to revoke the device.
//
// @Summary Disconnect a GET account
// @Produce json
// @Success 200 {object} ConnectedResponse
// @Router /get-credential [delete]
func (h *CredentialHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	if err := h.service.Unlink(r.Context(), claims.UserID); err != nil {
		pkghttp.WriteInternalError(w)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &ConnectedResponse{Connected: false})
}

// UpdateMode changes the caller's default fulfillment mode
//
// @Summary Set default fulfillment mode
// @Accept json
// @Param request body UpdateModeRequest true "Mode"
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /get-credential [patch]
func (h *CredentialHandler) UpdateMode(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UpdateModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	mode, err := h.service.SetDefaultMode(r.Context(), claims.UserID, req.DefaultFulfillmentMode)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidFulfillmentMode):
			pkghttp.WriteError(w, http.StatusBadRequest, "invalid_fulfillment_mode", "Invalid fulfillment mode")
		case errors.Is(err, models.ErrNotFound):
			pkghttp.WriteNotFound(w, "User not found")
		default:
			pkghttp.WriteInternalError(w)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"defaultFulfillmentMode": string(mode)})
}

// GetPayload returns the caller's own live barcode payload
//
// @Summary Fetch barcode payload
// @Produce json
// @Success 200 {object} BarcodePayloadResponse
// @Failure 400 {object} pkghttp.ErrorResponse
// @Router /get-credential/payload [get]
func (h *CredentialHandler) GetPayload(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	result, err := h.service.BarcodePayload(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrCredentialNotLinked) {
			pkghttp.WriteError(w, http.StatusBadRequest, "get_not_connected", connectFirstMessage)
			return
		}
		pkghttp.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to fetch GET barcode payload")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &BarcodePayloadResponse{
		Payload:   result.Payload,
		FetchedAt: formatTime(result.FetchedAt),
		Length:    len(result.Payload),
	})
}

// GetOverview returns app and GET balances, the payload and recent
// transactions for the caller
//
// @Summary GET account overview
// @Param hours query int false "Transaction window in hours (default 24, max 336)"
// @Param limit query int false "Max transactions (default 25, max 200)"
// @Produce json
// @Success 200 {object} OverviewResponse
// @Router /get-credential/overview [get]
func (h *CredentialHandler) GetOverview(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	hours := queryInt(r, "hours")
	limit := queryInt(r, "limit")

	overview, err := h.service.Overview(r.Context(), claims.UserID, hours, limit)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteError(w, http.StatusInternalServerError, "internal_error", "Failed to load GET overview")
		return
	}

	if !overview.Connected {
		pkghttp.WriteJSON(w, http.StatusOK, &DisconnectedOverviewResponse{
			Connected:  false,
			AppBalance: overview.AppBalance,
			Error:      connectFirstMessage,
		})
		return
	}

	resp := &OverviewResponse{
		Connected:               true,
		AppBalance:              overview.AppBalance,
		TotalGetBalance:         overview.TotalGetBalance,
		BarcodePayload:          overview.BarcodePayload,
		Accounts:                nonNil(overview.Accounts),
		Transactions:            nonNil(overview.Transactions),
		TransactionsWindowHours: overview.TransactionsWindowHours,
		ReturnedTransactions:    overview.ReturnedTransactions,
		FetchedAt:               formatTime(overview.FetchedAt),
	}
	if overview.Warning != "" {
		resp.Warning = &overview.Warning
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// queryInt parses a non-negative integer query parameter; anything else is
// treated as absent so the service default applies.
func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
