package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/co-efb/internal/notify"
	"github.com/yegors/co-efb/internal/storage/sqlite"
	"github.com/yegors/co-efb/pkg/logger"
)

// GetNotifications handles GET /api/notifications?limit=&unread=true
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}

	limit := sqlite.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	list, err := h.notifier.List(r.Context(), limit, unreadOnly)
	if err != nil {
		h.logger.Error("Failed to list notifications", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "notification query failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": list,
	})
}

// CreateNotification handles POST /api/notifications
func (h *Handler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}

	var req notify.Notification
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification")
		return
	}

	delivery, err := h.notifier.Send(r.Context(), req)
	switch {
	case errors.Is(err, notify.ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid notification")
	case errors.Is(err, notify.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate notification")
	case err != nil:
		h.logger.Error("Failed to send notification", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "notification failed")
	default:
		WriteJSON(w, http.StatusCreated, delivery)
	}
}

// MarkNotificationRead handles POST /api/notifications/{id}/read
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	if h.notifier == nil {
		writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.notifier.MarkRead(r.Context(), id); err != nil {
		if errors.Is(err, notify.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		h.logger.Error("Failed to mark notification read", logger.Int64("id", id), logger.Error(err))
		writeError(w, http.StatusInternalServerError, "notification update failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"id": id, "read": true})
}
