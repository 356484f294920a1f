package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"mediascore/internal/middleware"
	"mediascore/internal/repository"
)

// NotificationHandler exposes the per-user notification feed
type NotificationHandler struct {
	notifications *repository.NotificationRepository
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *repository.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List returns the caller's notifications, newest first
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Param limit query int false "Page size (default 50)"
// @Success 200 {array} models.Notification
// @Failure 401 {object} ErrorResponse
// @Security BearerAuth
// @Router /notifications [get]
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}

	notifications, err := h.notifications.ListByUser(r.Context(), userID, limit)
	if err != nil {
		slog.Error("failed to list notifications", "user_id", userID, "error", err)
		JSONError(w, http.StatusInternalServerError, "failed to list notifications")
		return
	}
	JSONResponse(w, http.StatusOK, notifications)
}

// MarkRead marks one of the caller's notifications as read
// @Summary Mark a notification as read
// @Tags notifications
// @Produce json
// @Param id path int true "Notification ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Security BearerAuth
// @Router /notifications/{id}/read [post]
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFrom(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		JSONError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	if err := h.notifications.MarkRead(r.Context(), uint(id), userID); err != nil {
		JSONError(w, http.StatusNotFound, "notification not found")
		return
	}
	JSONResponse(w, http.StatusOK, map[string]string{"message": "notification marked as read"})
}
