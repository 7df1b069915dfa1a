package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/middleware"
	"github.com/foodgram/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DeliveryServicer defines the service methods needed by delivery handlers.
// Satisfied by *service.DeliveryService.
type DeliveryServicer interface {
	Accept(ctx context.Context, deliveryID, partnerID uuid.UUID) (*service.AcceptResult, error)
	Assign(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Delivery, error)
	MarkPickedUp(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Delivery, error)
	MarkInTransit(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Delivery, error)
	MarkDelivered(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Order, error)
	UpdateLocation(ctx context.Context, deliveryID, partnerID uuid.UUID, lat, lng float64) (database.Delivery, error)
}

// DeliveryStore defines the database methods needed by delivery list handlers.
// Satisfied by *database.Queries.
type DeliveryStore interface {
	ListAvailableDeliveries(ctx context.Context, partnerID uuid.UUID) ([]database.DeliveryWithOrderRow, error)
	ListPartnerDeliveries(ctx context.Context, arg database.ListPartnerDeliveriesParams) ([]database.DeliveryWithOrderRow, error)
}

// DeliveryHandler handles delivery partner endpoints.
type DeliveryHandler struct {
	svc   DeliveryServicer
	store DeliveryStore
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(svc DeliveryServicer, store DeliveryStore) *DeliveryHandler {
	return &DeliveryHandler{svc: svc, store: store}
}

// RegisterRoutes registers delivery endpoints. Expected to be mounted behind
// Authenticate at /deliveries.
func (h *DeliveryHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.RoleAdmin)).Post("/{id}/assign", h.Assign)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(enum.RoleDelivery))
		r.Get("/available", h.Available)
		r.Get("/mine", h.Mine)
		r.Post("/{id}/accept", h.Accept)
		r.Post("/{id}/pickup", h.PickUp)
		r.Post("/{id}/in-transit", h.InTransit)
		r.Post("/{id}/deliver", h.Deliver)
		r.Post("/{id}/location", h.Location)
	})
}

type assignRequest struct {
	PartnerID string `json:"partner_id"`
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type acceptResponse struct {
	Delivery deliveryResponse `json:"delivery"`
	Order    orderResponse    `json:"order"`
}

// Available handles GET /deliveries/available.
func (h *DeliveryHandler) Available(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	rows, err := h.store.ListAvailableDeliveries(r.Context(), claims.UserID)
	if err != nil {
		writeInternal(w, "list available deliveries", err)
		return
	}
	writeData(w, http.StatusOK, toDeliveryList(rows))
}

// Mine handles GET /deliveries/mine.
func (h *DeliveryHandler) Mine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	limit, _ := parsePage(r)
	rows, err := h.store.ListPartnerDeliveries(r.Context(), database.ListPartnerDeliveriesParams{
		DeliveryPartnerID: claims.UserID,
		Limit:             int32(limit),
	})
	if err != nil {
		writeInternal(w, "list partner deliveries", err)
		return
	}
	writeData(w, http.StatusOK, toDeliveryList(rows))
}

// Assign handles POST /deliveries/{id}/assign.
func (h *DeliveryHandler) Assign(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	partnerID, err := uuid.Parse(req.PartnerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid partner_id")
		return
	}

	d, err := h.svc.Assign(r.Context(), deliveryID, partnerID)
	if err != nil {
		writeServiceError(w, "assign delivery", err)
		return
	}
	writeData(w, http.StatusOK, dbDeliveryToResponse(d))
}

// Accept handles POST /deliveries/{id}/accept.
func (h *DeliveryHandler) Accept(w http.ResponseWriter, r *http.Request) {
	deliveryID, partnerID, ok := h.target(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Accept(r.Context(), deliveryID, partnerID)
	if err != nil {
		writeServiceError(w, "accept delivery", err)
		return
	}
	writeData(w, http.StatusOK, acceptResponse{
		Delivery: dbDeliveryToResponse(result.Delivery),
		Order:    dbOrderToResponse(result.Order),
	})
}

// PickUp handles POST /deliveries/{id}/pickup.
func (h *DeliveryHandler) PickUp(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, "pick up delivery", h.svc.MarkPickedUp)
}

// InTransit handles POST /deliveries/{id}/in-transit.
func (h *DeliveryHandler) InTransit(w http.ResponseWriter, r *http.Request) {
	h.advance(w, r, "mark delivery in transit", h.svc.MarkInTransit)
}

func (h *DeliveryHandler) advance(
	w http.ResponseWriter,
	r *http.Request,
	op string,
	step func(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Delivery, error),
) {
	deliveryID, partnerID, ok := h.target(w, r)
	if !ok {
		return
	}

	d, err := step(r.Context(), deliveryID, partnerID)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeData(w, http.StatusOK, dbDeliveryToResponse(d))
}

// Deliver handles POST /deliveries/{id}/deliver.
func (h *DeliveryHandler) Deliver(w http.ResponseWriter, r *http.Request) {
	deliveryID, partnerID, ok := h.target(w, r)
	if !ok {
		return
	}

	order, err := h.svc.MarkDelivered(r.Context(), deliveryID, partnerID)
	if err != nil {
		writeServiceError(w, "deliver order", err)
		return
	}
	writeData(w, http.StatusOK, dbOrderToResponse(order))
}

// Location handles POST /deliveries/{id}/location.
func (h *DeliveryHandler) Location(w http.ResponseWriter, r *http.Request) {
	deliveryID, partnerID, ok := h.target(w, r)
	if !ok {
		return
	}

	var req locationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}

	d, err := h.svc.UpdateLocation(r.Context(), deliveryID, partnerID, *req.Lat, *req.Lng)
	if err != nil {
		writeServiceError(w, "update delivery location", err)
		return
	}
	writeData(w, http.StatusOK, dbDeliveryToResponse(d))
}

// target extracts the delivery id from the path and the partner from the token.
func (h *DeliveryHandler) target(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return uuid.Nil, uuid.Nil, false
	}
	deliveryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid delivery ID")
		return uuid.Nil, uuid.Nil, false
	}
	return deliveryID, claims.UserID, true
}

func toDeliveryList(rows []database.DeliveryWithOrderRow) []deliveryWithOrderResponse {
	resp := make([]deliveryWithOrderResponse, len(rows))
	for i, row := range rows {
		resp[i] = dbDeliveryWithOrderToResponse(row)
	}
	return resp
}
