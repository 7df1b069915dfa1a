package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/foodgram/api/internal/metrics"
	"github.com/foodgram/api/internal/realtime"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Errors returned by the delivery service.
var (
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrInvalidPartner   = errors.New("partner_id must reference an active delivery partner")
	ErrInvalidLocation  = errors.New("lat must be within [-90, 90] and lng within [-180, 180]")
)

// DeliveryStore defines the DB methods needed by the delivery service.
// Satisfied by *database.Queries (and its WithTx variant).
type DeliveryStore interface {
	transitionStore
	GetDelivery(ctx context.Context, id uuid.UUID) (database.Delivery, error)
	ClaimDelivery(ctx context.Context, arg database.ClaimDeliveryParams) (database.Delivery, error)
	AssignDeliveryPartner(ctx context.Context, arg database.AssignDeliveryPartnerParams) (database.Delivery, error)
	AssignOrderPartner(ctx context.Context, arg database.AssignOrderPartnerParams) (database.Order, error)
	UpdateDeliveryStatus(ctx context.Context, arg database.UpdateDeliveryStatusParams) (database.Delivery, error)
	UpdateDeliveryLocation(ctx context.Context, arg database.UpdateDeliveryLocationParams) (database.Delivery, error)
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// NewDeliveryStore creates a DeliveryStore from a DBTX (pool or tx).
type NewDeliveryStore func(db database.DBTX) DeliveryStore

// DeliveryService runs the partner side of fulfilment: claiming, pickup,
// transit, hand-over and location updates.
type DeliveryService struct {
	pool     TxBeginner
	store    DeliveryStore
	newStore NewDeliveryStore
	guard    lifecycle.ClaimGuard
	deps     Deps
	announce announcer
}

// NewDeliveryService creates a DeliveryService. store serves single-statement
// operations; newStore builds a store bound to a transaction. demoAccount may
// be uuid.Nil.
func NewDeliveryService(pool TxBeginner, store DeliveryStore, newStore NewDeliveryStore, demoAccount uuid.UUID, deps Deps) *DeliveryService {
	deps = deps.withDefaults()
	return &DeliveryService{
		pool:     pool,
		store:    store,
		newStore: newStore,
		guard:    lifecycle.NewClaimGuard(demoAccount),
		deps:     deps,
		announce: announcer{deps: deps},
	}
}

// AcceptResult is the claimed delivery and the order it now carries.
type AcceptResult struct {
	Delivery database.Delivery
	Order    database.Order
}

// Accept lets partnerID claim the pending delivery of a ready order. The
// claim itself is a single conditional UPDATE, so of any number of concurrent
// callers exactly one wins; the rest get ErrDeliveryUnavailable (or
// ErrNotAssignedPartner when the delivery was reserved for someone else).
//
// Locks are taken order first, then delivery, the same order the status
// path uses.
func (s *DeliveryService) Accept(ctx context.Context, deliveryID, partnerID uuid.UUID) (*AcceptResult, error) {
	res, err := s.accept(ctx, deliveryID, partnerID)
	switch {
	case err == nil:
		metrics.DeliveryClaims.WithLabelValues(metrics.ClaimWon).Inc()
	case errors.Is(err, lifecycle.ErrDemoAccount):
		metrics.DeliveryClaims.WithLabelValues(metrics.ClaimBarred).Inc()
	case errors.Is(err, lifecycle.ErrDeliveryUnavailable), errors.Is(err, lifecycle.ErrNotAssignedPartner):
		metrics.DeliveryClaims.WithLabelValues(metrics.ClaimLost).Inc()
	}
	return res, err
}

func (s *DeliveryService) accept(ctx context.Context, deliveryID, partnerID uuid.UUID) (*AcceptResult, error) {
	if s.guard.Barred(partnerID) {
		return nil, lifecycle.ErrDemoAccount
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	current, err := s.getDelivery(ctx, store, deliveryID)
	if err != nil {
		return nil, err
	}
	// Fast rejection; the UPDATE below is what actually decides.
	if err := s.guard.Check(deliveryRef(current), partnerID); err != nil {
		return nil, err
	}

	order, err := store.GetOrderForUpdate(ctx, current.OrderID)
	if err != nil {
		return nil, fmt.Errorf("lock order: %w", err)
	}
	// Only a ready order may go out for delivery.
	prev := enum.OrderStatus(order.Status)
	if lifecycle.ValidateTransition(prev, enum.OrderStatusOutForDelivery) != nil {
		return nil, lifecycle.ErrDeliveryUnavailable
	}

	claimed, err := store.ClaimDelivery(ctx, database.ClaimDeliveryParams{
		ID:                deliveryID,
		DeliveryPartnerID: partnerID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.explainLostClaim(ctx, store, deliveryID, partnerID)
		}
		return nil, fmt.Errorf("claim delivery: %w", err)
	}

	updated, err := store.AssignOrderPartner(ctx, database.AssignOrderPartnerParams{
		ID:                order.ID,
		DeliveryPartnerID: partnerID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lifecycle.ErrDeliveryUnavailable
		}
		return nil, fmt.Errorf("assign order partner: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	s.announce.orderChanged(ctx, updated, prev)
	return &AcceptResult{Delivery: claimed, Order: updated}, nil
}

// explainLostClaim re-reads a delivery whose claim matched no row and
// reports why.
func (s *DeliveryService) explainLostClaim(ctx context.Context, store DeliveryStore, deliveryID, partnerID uuid.UUID) error {
	d, err := s.getDelivery(ctx, store, deliveryID)
	if err != nil {
		return err
	}
	if err := s.guard.Check(deliveryRef(d), partnerID); err != nil {
		return err
	}
	return lifecycle.ErrDeliveryUnavailable
}

// Assign reserves a pending, unclaimed delivery for one partner. The
// delivery stays pending until that partner accepts it.
func (s *DeliveryService) Assign(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Delivery, error) {
	store := s.store
	if s.guard.Barred(partnerID) {
		return database.Delivery{}, lifecycle.ErrDemoAccount
	}

	partner, err := store.GetUserByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Delivery{}, ErrInvalidPartner
		}
		return database.Delivery{}, fmt.Errorf("get partner: %w", err)
	}
	if partner.Role != string(enum.RoleDelivery) {
		return database.Delivery{}, ErrInvalidPartner
	}

	d, err := store.AssignDeliveryPartner(ctx, database.AssignDeliveryPartnerParams{
		ID:                deliveryID,
		DeliveryPartnerID: partnerID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := s.getDelivery(ctx, store, deliveryID); err != nil {
				return database.Delivery{}, err
			}
			return database.Delivery{}, lifecycle.ErrDeliveryUnavailable
		}
		return database.Delivery{}, fmt.Errorf("assign delivery: %w", err)
	}

	if order, err := store.GetOrder(ctx, d.OrderID); err == nil {
		s.deps.Notifier.Notify(ctx, partnerID, order.ID, enum.NotificationDelivery,
			lifecycle.DeliveryAssignedMessage(order.OrderNumber))
	}
	s.deps.Publisher.Publish(realtime.UserRoom(partnerID), enum.EventDeliveryAvailable, d.ID)
	return d, nil
}

// MarkPickedUp moves an accepted delivery to picked_up.
func (s *DeliveryService) MarkPickedUp(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Delivery, error) {
	return s.advance(ctx, deliveryID, partnerID, enum.DeliveryStatusPickedUp)
}

// MarkInTransit moves a picked-up delivery to in_transit.
func (s *DeliveryService) MarkInTransit(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Delivery, error) {
	return s.advance(ctx, deliveryID, partnerID, enum.DeliveryStatusInTransit)
}

func (s *DeliveryService) advance(ctx context.Context, deliveryID, partnerID uuid.UUID, next enum.DeliveryStatus) (database.Delivery, error) {
	store := s.store

	d, err := s.getDelivery(ctx, store, deliveryID)
	if err != nil {
		return database.Delivery{}, err
	}
	if err := lifecycle.CheckAssignedPartner(deliveryRef(d), partnerID); err != nil {
		return database.Delivery{}, err
	}
	if err := lifecycle.ValidateDeliveryTransition(enum.DeliveryStatus(d.Status), next); err != nil {
		return database.Delivery{}, err
	}

	arg := database.UpdateDeliveryStatusParams{
		ID:         d.ID,
		PrevStatus: d.Status,
		Status:     string(next),
	}
	if next == enum.DeliveryStatusPickedUp {
		arg.PickedUpAt = timestamp(s.deps.Now())
	}
	updated, err := store.UpdateDeliveryStatus(ctx, arg)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Delivery{}, fmt.Errorf("%w: delivery changed concurrently", lifecycle.ErrInvalidDeliveryStatus)
		}
		return database.Delivery{}, fmt.Errorf("update delivery status: %w", err)
	}

	s.deps.Publisher.Publish(realtime.OrderRoom(d.OrderID), enum.EventDeliveryStatus, deliveryPayload(updated))
	return updated, nil
}

// MarkDelivered completes the delivery and its order together. The order
// goes through the regular transition engine as the assigned partner, which
// also brings the delivery row to delivered.
func (s *DeliveryService) MarkDelivered(ctx context.Context, deliveryID, partnerID uuid.UUID) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	d, err := s.getDelivery(ctx, store, deliveryID)
	if err != nil {
		return database.Order{}, err
	}
	if err := lifecycle.CheckAssignedPartner(deliveryRef(d), partnerID); err != nil {
		return database.Order{}, err
	}
	if err := lifecycle.ValidateDeliveryTransition(enum.DeliveryStatus(d.Status), enum.DeliveryStatusDelivered); err != nil {
		return database.Order{}, err
	}

	actor := lifecycle.Actor{UserID: partnerID, Role: enum.RoleDelivery}
	authorize := func(o database.Order) error {
		return lifecycle.CanTransitionAs(actor, orderRef(o), enum.OrderStatusDelivered).Err()
	}
	updated, prev, err := applyTransition(ctx, store, d.OrderID, enum.OrderStatusDelivered, authorize, "", s.deps.Now())
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.announce.orderChanged(ctx, updated, prev)
	return updated, nil
}

// LocationPayload is pushed to the order room on every position update.
type LocationPayload struct {
	DeliveryID uuid.UUID `json:"delivery_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	At         time.Time `json:"at"`
}

// UpdateLocation stores the partner's position for an active delivery and
// pushes it to everyone watching the order.
func (s *DeliveryService) UpdateLocation(ctx context.Context, deliveryID, partnerID uuid.UUID, lat, lng float64) (database.Delivery, error) {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return database.Delivery{}, ErrInvalidLocation
	}
	store := s.store

	d, err := s.getDelivery(ctx, store, deliveryID)
	if err != nil {
		return database.Delivery{}, err
	}
	if err := lifecycle.CheckAssignedPartner(deliveryRef(d), partnerID); err != nil {
		return database.Delivery{}, err
	}
	switch enum.DeliveryStatus(d.Status) {
	case enum.DeliveryStatusAccepted, enum.DeliveryStatusPickedUp, enum.DeliveryStatusInTransit:
	default:
		return database.Delivery{}, fmt.Errorf("%w: delivery is %s", lifecycle.ErrInvalidDeliveryStatus, d.Status)
	}

	updated, err := store.UpdateDeliveryLocation(ctx, database.UpdateDeliveryLocationParams{
		ID:         d.ID,
		CurrentLat: pgtype.Float8{Float64: lat, Valid: true},
		CurrentLng: pgtype.Float8{Float64: lng, Valid: true},
	})
	if err != nil {
		return database.Delivery{}, fmt.Errorf("update location: %w", err)
	}

	s.deps.Publisher.Publish(realtime.OrderRoom(d.OrderID), enum.EventDeliveryLocation, LocationPayload{
		DeliveryID: d.ID,
		OrderID:    d.OrderID,
		Lat:        lat,
		Lng:        lng,
		At:         s.deps.Now(),
	})
	return updated, nil
}

func (s *DeliveryService) getDelivery(ctx context.Context, store DeliveryStore, id uuid.UUID) (database.Delivery, error) {
	d, err := store.GetDelivery(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Delivery{}, ErrDeliveryNotFound
		}
		return database.Delivery{}, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

// DeliveryPayload is the realtime view of a delivery status change.
type DeliveryPayload struct {
	DeliveryID uuid.UUID `json:"delivery_id"`
	OrderID    uuid.UUID `json:"order_id"`
	Status     string    `json:"status"`
}

func deliveryPayload(d database.Delivery) DeliveryPayload {
	return DeliveryPayload{DeliveryID: d.ID, OrderID: d.OrderID, Status: d.Status}
}
