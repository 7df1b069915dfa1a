package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DefaultCancelReason is stored when a customer cancels without a reason.
const DefaultCancelReason = "Cancelled by customer"

// UpdateStatusRequest asks to move an order to Status on behalf of Actor.
type UpdateStatusRequest struct {
	OrderID uuid.UUID
	Actor   lifecycle.Actor
	Status  string
	Reason  string
}

// gate decides, with the order row locked, whether the change may proceed.
type gate func(o database.Order) error

// UpdateStatus is the general status path. The actor's capability is
// checked first, then the transition table.
func (s *OrderService) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (database.Order, error) {
	next := enum.OrderStatus(req.Status)
	if !next.Valid() {
		return database.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status)
	}
	authorize := func(o database.Order) error {
		return lifecycle.CanTransitionAs(req.Actor, orderRef(o), next).Err()
	}
	return s.transition(ctx, req.OrderID, next, authorize, req.Reason)
}

// CancelOrder is the customer-facing cancel path. It is narrower than the
// transition table: only pending, paid and confirmed orders qualify.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID, actor lifecycle.Actor, reason string) (database.Order, error) {
	if reason == "" {
		reason = DefaultCancelReason
	}
	authorize := func(o database.Order) error {
		if err := lifecycle.CanCancel(actor, orderRef(o)).Err(); err != nil {
			return err
		}
		return lifecycle.ValidateCancel(enum.OrderStatus(o.Status))
	}
	return s.transition(ctx, orderID, enum.OrderStatusCancelled, authorize, reason)
}

func (s *OrderService) transition(ctx context.Context, orderID uuid.UUID, next enum.OrderStatus, authorize gate, reason string) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	updated, prev, err := applyTransition(ctx, s.newStore(tx), orderID, next, authorize, reason, s.deps.Now())
	if err != nil {
		return database.Order{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}

	s.announce.orderChanged(ctx, updated, prev)
	return updated, nil
}

// applyTransition locks the order, runs the gate and the transition table,
// writes the new status conditionally on the old one and applies every side
// effect of the target status. The caller owns the transaction.
func applyTransition(
	ctx context.Context,
	store transitionStore,
	orderID uuid.UUID,
	next enum.OrderStatus,
	authorize gate,
	reason string,
	now time.Time,
) (database.Order, enum.OrderStatus, error) {
	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, "", ErrOrderNotFound
		}
		return database.Order{}, "", fmt.Errorf("get order: %w", err)
	}

	if authorize != nil {
		if err := authorize(order); err != nil {
			return database.Order{}, "", err
		}
	}

	prev := enum.OrderStatus(order.Status)
	if err := lifecycle.ValidateTransition(prev, next); err != nil {
		return database.Order{}, "", err
	}

	plan := lifecycle.PlanFor(next)
	params := database.UpdateOrderStatusParams{
		ID:         order.ID,
		PrevStatus: order.Status,
		Status:     string(next),
	}
	applyStamp(&params, plan.Stamp, now)
	if next == enum.OrderStatusCancelled {
		params.CancellationReason = textOrNull(reason)
	}

	updated, err := store.UpdateOrderStatus(ctx, params)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.Order{}, "", ErrConcurrentUpdate
		}
		return database.Order{}, "", fmt.Errorf("update order status: %w", err)
	}

	if next == enum.OrderStatusPaid && updated.PaymentStatus != string(enum.PaymentStatusPaid) {
		updated, err = store.UpdateOrderPaymentStatus(ctx, database.UpdateOrderPaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: string(enum.PaymentStatusPaid),
		})
		if err != nil {
			return database.Order{}, "", fmt.Errorf("update payment status: %w", err)
		}
	}

	if plan.CountSales {
		if err := store.IncrementMenuItemSales(ctx, order.ID); err != nil {
			return database.Order{}, "", fmt.Errorf("increment sales: %w", err)
		}
	}

	if sync := plan.Delivery; sync != nil {
		arg := database.SyncDeliveryForOrderParams{
			OrderID:       order.ID,
			Status:        string(sync.Status),
			FailureReason: textOrNull(sync.FailureReason),
		}
		if sync.StampPickedUp {
			arg.PickedUpAt = timestamp(now)
		}
		if sync.StampDelivered {
			arg.DeliveredAt = timestamp(now)
		}
		if _, err := store.SyncDeliveryForOrder(ctx, arg); err != nil {
			return database.Order{}, "", fmt.Errorf("sync delivery: %w", err)
		}
	}

	return updated, prev, nil
}

func applyStamp(p *database.UpdateOrderStatusParams, stamp lifecycle.Stamp, now time.Time) {
	ts := timestamp(now)
	switch stamp {
	case lifecycle.StampAccepted:
		p.AcceptedAt = ts
	case lifecycle.StampPreparing:
		p.PreparingAt = ts
	case lifecycle.StampReady:
		p.ReadyAt = ts
	case lifecycle.StampPickedUp:
		p.PickedUpAt = ts
	case lifecycle.StampDelivered:
		p.DeliveredAt = ts
	case lifecycle.StampCancelled:
		p.CancelledAt = ts
	}
}
