package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/foodgram/api/internal/middleware"
	"github.com/foodgram/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	UpdateStatus(ctx context.Context, req service.UpdateStatusRequest) (database.Order, error)
	CancelOrder(ctx context.Context, orderID uuid.UUID, actor lifecycle.Actor, reason string) (database.Order, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (database.Delivery, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc   OrderServicer
	store OrderStore
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderStore) *OrderHandler {
	return &OrderHandler{svc: svc, store: store}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted behind Authenticate at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.RoleCustomer)).Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Patch("/{id}/status", h.UpdateStatus)
	r.Patch("/{id}/cancel", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"items"`
	DeliveryAddress string                   `json:"delivery_address"`
	DeliveryLat     *float64                 `json:"delivery_lat"`
	DeliveryLng     *float64                 `json:"delivery_lng"`
	Notes           string                   `json:"notes"`
	PaymentMethod   string                   `json:"payment_method"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
	Notes      string `json:"notes"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type cancelOrderRequest struct {
	CancellationReason string `json:"cancellation_reason"`
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = service.CreateOrderItemRequest{
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		}
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CustomerID:      claims.UserID,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryLat:     req.DeliveryLat,
		DeliveryLng:     req.DeliveryLng,
		Notes:           req.Notes,
		PaymentMethod:   req.PaymentMethod,
		Items:           items,
	})
	if err != nil {
		writeServiceError(w, "create order", err)
		return
	}

	resp := dbOrderToResponse(result.Order)
	resp.Items = make([]orderItemResponse, len(result.Items))
	for i, item := range result.Items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}
	delivery := dbDeliveryToResponse(result.Delivery)
	resp.Delivery = &delivery
	resp.ClientSecret = result.ClientSecret

	writeData(w, http.StatusCreated, resp)
}

// List handles GET /orders. Customers see their own orders, admins see all.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	limit, offset := parsePage(r)
	params := database.ListOrdersParams{
		Limit:  int32(limit),
		Offset: int32(offset),
	}

	switch enum.Role(claims.Role) {
	case enum.RoleAdmin:
	case enum.RoleCustomer:
		params.CustomerID = pgtype.UUID{Bytes: claims.UserID, Valid: true}
	default:
		writeError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	if s := r.URL.Query().Get("status"); s != "" {
		if !enum.OrderStatus(s).Valid() {
			writeError(w, http.StatusBadRequest, "invalid status")
			return
		}
		params.Status = pgtype.Text{String: s, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		writeInternal(w, "list orders", err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = dbOrderToResponse(o)
	}

	writeData(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeInternal(w, "get order", err)
		return
	}

	ref := lifecycle.OrderRef{Status: enum.OrderStatus(order.Status), CustomerID: order.CustomerID}
	if order.DeliveryPartnerID.Valid {
		ref.DeliveryPartnerID = order.DeliveryPartnerID.Bytes
	}
	if err := lifecycle.CanView(claims.Actor(), ref).Err(); err != nil {
		writeError(w, http.StatusForbidden, err.Error())
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		writeInternal(w, "list order items", err)
		return
	}

	resp := dbOrderToResponse(order)
	resp.Items = make([]orderItemResponse, len(items))
	for i, item := range items {
		resp.Items[i] = dbOrderItemToResponse(item)
	}

	delivery, err := h.store.GetDeliveryByOrder(r.Context(), orderID)
	switch {
	case err == nil:
		d := dbDeliveryToResponse(delivery)
		resp.Delivery = &d
	case !errors.Is(err, pgx.ErrNoRows):
		writeInternal(w, "get order delivery", err)
		return
	}

	writeData(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	updated, err := h.svc.UpdateStatus(r.Context(), service.UpdateStatusRequest{
		OrderID: orderID,
		Actor:   claims.Actor(),
		Status:  req.Status,
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	writeData(w, http.StatusOK, dbOrderToResponse(updated))
}

// Cancel handles PATCH /orders/{id}/cancel.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order ID")
		return
	}

	// The body is optional.
	var req cancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	updated, err := h.svc.CancelOrder(r.Context(), orderID, claims.Actor(), req.CancellationReason)
	if err != nil {
		writeServiceError(w, "cancel order", err)
		return
	}

	writeData(w, http.StatusOK, dbOrderToResponse(updated))
}
