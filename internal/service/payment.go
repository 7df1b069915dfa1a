package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/foodgram/api/internal/metrics"
	"github.com/foodgram/api/internal/payment"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ApplyPaymentEvent records the outcome of a card payment. A successful
// payment moves a pending order to paid as the system actor. Events for
// unknown intents and repeated deliveries are ignored.
func (s *OrderService) ApplyPaymentEvent(ctx context.Context, evt payment.Event) error {
	if evt.Kind == payment.EventIgnored || evt.IntentID == "" {
		return nil
	}
	metrics.PaymentEvents.WithLabelValues(evt.Type).Inc()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderByPaymentIntentForUpdate(ctx, evt.IntentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			zap.L().Warn("payment event for unknown intent", zap.String("intent_id", evt.IntentID), zap.String("type", evt.Type))
			return nil
		}
		return fmt.Errorf("get order by intent: %w", err)
	}

	switch evt.Kind {
	case payment.EventFailed:
		if order.PaymentStatus == string(enum.PaymentStatusPaid) {
			return nil
		}
		if _, err := store.UpdateOrderPaymentStatus(ctx, database.UpdateOrderPaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: string(enum.PaymentStatusFailed),
		}); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		s.deps.Notifier.Notify(ctx, order.CustomerID, order.ID, enum.NotificationPayment,
			lifecycle.PaymentFailedMessage(order.OrderNumber))
		return nil

	case payment.EventSucceeded:
		if order.PaymentStatus == string(enum.PaymentStatusPaid) && order.Status != string(enum.OrderStatusPending) {
			return nil
		}
		if _, err := store.UpdateOrderPaymentStatus(ctx, database.UpdateOrderPaymentStatusParams{
			ID:            order.ID,
			PaymentStatus: string(enum.PaymentStatusPaid),
		}); err != nil {
			return fmt.Errorf("update payment status: %w", err)
		}

		if order.Status != string(enum.OrderStatusPending) {
			// Money arrived for an order that already left pending (usually
			// cancelled). Keep the record; refunds are handled by staff.
			zap.L().Warn("payment succeeded for non-pending order",
				zap.String("order_id", order.ID.String()), zap.String("status", order.Status))
			if err := tx.Commit(ctx); err != nil {
				return fmt.Errorf("commit tx: %w", err)
			}
			return nil
		}

		system := lifecycle.SystemActor()
		authorize := func(o database.Order) error {
			return lifecycle.CanTransitionAs(system, orderRef(o), enum.OrderStatusPaid).Err()
		}
		updated, prev, err := applyTransition(ctx, store, order.ID, enum.OrderStatusPaid, authorize, "", s.deps.Now())
		if err != nil {
			return err
		}
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		s.announce.orderChanged(ctx, updated, prev)
	}
	return nil
}
