package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/handler"
	"github.com/foodgram/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type mockNotificationStore struct {
	listFn     func(ctx context.Context, arg database.ListNotificationsByUserParams) ([]database.Notification, error)
	markReadFn func(ctx context.Context, arg database.MarkNotificationReadParams) (database.Notification, error)
}

func (m *mockNotificationStore) ListNotificationsByUser(ctx context.Context, arg database.ListNotificationsByUserParams) ([]database.Notification, error) {
	if m.listFn != nil {
		return m.listFn(ctx, arg)
	}
	return []database.Notification{}, nil
}

func (m *mockNotificationStore) MarkNotificationRead(ctx context.Context, arg database.MarkNotificationReadParams) (database.Notification, error) {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, arg)
	}
	return database.Notification{}, pgx.ErrNoRows
}

func setupNotificationRouter(store handler.NotificationStore) *chi.Mux {
	h := handler.NewNotificationHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.Route("/notifications", h.RegisterRoutes)
	return r
}

func TestNotificationList(t *testing.T) {
	claims := customerClaims()
	orderID := uuid.New()
	store := &mockNotificationStore{
		listFn: func(_ context.Context, arg database.ListNotificationsByUserParams) ([]database.Notification, error) {
			if arg.UserID != claims.UserID {
				t.Errorf("user: got %v, want %v", arg.UserID, claims.UserID)
			}
			if arg.Limit != 10 || arg.Offset != 10 {
				t.Errorf("page: got %d/%d, want 10/10", arg.Limit, arg.Offset)
			}
			return []database.Notification{
				{ID: uuid.New(), UserID: claims.UserID, OrderID: pgtype.UUID{Bytes: orderID, Valid: true}, Type: "order_status", Title: "Order confirmed", CreatedAt: time.Now()},
				{ID: uuid.New(), UserID: claims.UserID, Type: "payment", Title: "Payment received", IsRead: true, CreatedAt: time.Now()},
			}, nil
		},
	}
	router := setupNotificationRouter(store)

	rr := doAuthRequest(t, router, "GET", "/notifications?limit=10&offset=10", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	list := decodeList(t, rr)
	if len(list) != 2 {
		t.Fatalf("notifications: got %d, want 2", len(list))
	}
	first := list[0].(map[string]interface{})
	if first["order_id"] != orderID.String() {
		t.Errorf("order_id: got %v, want %v", first["order_id"], orderID)
	}
	second := list[1].(map[string]interface{})
	if second["order_id"] != nil {
		t.Errorf("order_id: got %v, want null", second["order_id"])
	}
}

func TestNotificationMarkRead(t *testing.T) {
	claims := customerClaims()
	id := uuid.New()
	store := &mockNotificationStore{
		markReadFn: func(_ context.Context, arg database.MarkNotificationReadParams) (database.Notification, error) {
			if arg.ID != id || arg.UserID != claims.UserID {
				return database.Notification{}, pgx.ErrNoRows
			}
			return database.Notification{ID: id, UserID: claims.UserID, IsRead: true, CreatedAt: time.Now()}, nil
		},
	}
	router := setupNotificationRouter(store)

	rr := doAuthRequest(t, router, "PATCH", "/notifications/"+id.String()+"/read", nil, claims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if data := decodeData(t, rr); data["is_read"] != true {
		t.Errorf("is_read: got %v, want true", data["is_read"])
	}

	// Another user's notification looks missing.
	rr = doAuthRequest(t, router, "PATCH", "/notifications/"+id.String()+"/read", nil, customerClaims())
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestNotificationMarkRead_InvalidID(t *testing.T) {
	router := setupNotificationRouter(&mockNotificationStore{})
	rr := doAuthRequest(t, router, "PATCH", "/notifications/xyz/read", nil, customerClaims())
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
