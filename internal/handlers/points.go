package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pointshare/redeem/internal/auth"
	"github.com/pointshare/redeem/internal/models"
	pkghttp "github.com/pointshare/redeem/pkg/http"
)

// PointsService reads app balances
type PointsService interface {
	Balance(ctx context.Context, userID string) (*models.Points, error)
}

// NotificationService lists and updates in-app notifications
type NotificationService interface {
	List(ctx context.Context, userID string) ([]*models.Notification, error)
	SetRead(ctx context.Context, userID, id string, read bool) (*models.Notification, error)
}

// AccountHandler serves the caller's balance and notifications
type AccountHandler struct {
	points        PointsService
	notifications NotificationService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(points PointsService, notifications NotificationService) *AccountHandler {
	return &AccountHandler{
		points:        points,
		notifications: notifications,
	}
}

type PointsResponse struct {
	Balance   int    `json:"balance"`
	UpdatedAt string `json:"updatedAt"`
}

type NotificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"createdAt"`
}

type ListNotificationsResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Unread        int                     `json:"unread"`
}

// UpdateNotificationRequest represents the request body for marking a
// notification read or unread
type UpdateNotificationRequest struct {
	Read *bool `json:"read" validate:"required"`
}

func notificationModelToResponse(n *models.Notification) *NotificationResponse {
	return &NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

// GetPoints returns the caller's app balance
//
// @Summary Get points balance
// @Produce json
// @Success 200 {object} PointsResponse
// @Router /points [get]
func (h *AccountHandler) GetPoints(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	points, err := h.points.Balance(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		pkghttp.WriteInternalError(w)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, &PointsResponse{
		Balance:   points.Balance,
		UpdatedAt: formatTime(points.UpdatedAt),
	})
}

// ListNotifications returns the caller's notifications, newest first
//
// @Summary List notifications
// @Produce json
// @Success 200 {object} ListNotificationsResponse
// @Router /notifications [get]
func (h *AccountHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	notifications, err := h.notifications.List(r.Context(), claims.UserID)
	if err != nil {
		pkghttp.WriteInternalError(w)
		return
	}

	resp := &ListNotificationsResponse{
		Notifications: make([]*NotificationResponse, len(notifications)),
	}
	for i, n := range notifications {
		resp.Notifications[i] = notificationModelToResponse(n)
		if !n.Read {
			resp.Unread++
		}
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// UpdateNotification marks one of the caller's notifications read or unread
//
// @Summary Update notification
// @Accept json
// @Param id path string true "Notification ID"
// @Param request body UpdateNotificationRequest true "Read flag"
// @Produce json
// @Success 200 {object} NotificationResponse
// @Failure 404 {object} pkghttp.ErrorResponse
// @Router /notifications/{id} [patch]
func (h *AccountHandler) UpdateNotification(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetUserFromContext(r)
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	var req UpdateNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	n, err := h.notifications.SetRead(r.Context(), claims.UserID, chi.URLParam(r, "id"), *req.Read)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "Notification not found")
			return
		}
		pkghttp.WriteInternalError(w)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, notificationModelToResponse(n))
}
