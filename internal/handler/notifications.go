package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// NotificationStore defines the database methods needed by notification handlers.
// Satisfied by *database.Queries.
type NotificationStore interface {
	ListNotificationsByUser(ctx context.Context, arg database.ListNotificationsByUserParams) ([]database.Notification, error)
	MarkNotificationRead(ctx context.Context, arg database.MarkNotificationReadParams) (database.Notification, error)
}

// NotificationHandler serves a user's own notifications.
type NotificationHandler struct {
	store NotificationStore
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(store NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// RegisterRoutes registers notification endpoints behind Authenticate.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Patch("/{id}/read", h.MarkRead)
}

// List handles GET /notifications.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	limit, offset := parsePage(r)
	rows, err := h.store.ListNotificationsByUser(r.Context(), database.ListNotificationsByUserParams{
		UserID: claims.UserID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		writeInternal(w, "list notifications", err)
		return
	}

	resp := make([]notificationResponse, len(rows))
	for i, n := range rows {
		resp[i] = dbNotificationToResponse(n)
	}
	writeData(w, http.StatusOK, resp)
}

// MarkRead handles PATCH /notifications/{id}/read. Notifications of other
// users look like they do not exist.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification ID")
		return
	}

	n, err := h.store.MarkNotificationRead(r.Context(), database.MarkNotificationReadParams{
		ID:     id,
		UserID: claims.UserID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		writeInternal(w, "mark notification read", err)
		return
	}
	writeData(w, http.StatusOK, dbNotificationToResponse(n))
}
