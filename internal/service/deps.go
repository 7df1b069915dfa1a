package service

import (
	"context"
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/events"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/foodgram/api/internal/metrics"
	"github.com/foodgram/api/internal/payment"
	"github.com/foodgram/api/internal/realtime"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Notifier delivers a user-facing notification. It must not fail the caller;
// implementations log their own errors.
type Notifier interface {
	Notify(ctx context.Context, userID, orderID uuid.UUID, kind string, msg lifecycle.Message)
}

// EventPublisher forwards committed order changes to the event stream.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, e events.OrderEvent) error
}

// Publisher pushes a named event to every socket in a room.
type Publisher interface {
	Publish(room, event string, payload any)
}

// PaymentProvider creates card payment intents.
type PaymentProvider interface {
	CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error)
}

// Deps are the outbound side-effect ports shared by the services. Nil fields
// fall back to no-ops.
type Deps struct {
	Payments  PaymentProvider
	Notifier  Notifier
	Events    EventPublisher
	Publisher Publisher
	Now       func() time.Time
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, uuid.UUID, uuid.UUID, string, lifecycle.Message) {}

type nopPublisher struct{}

func (nopPublisher) Publish(string, string, any) {}

func (d Deps) withDefaults() Deps {
	if d.Payments == nil {
		d.Payments = payment.Offline{}
	}
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// StatusPayload is the realtime payload of an order status change.
type StatusPayload struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Status      string    `json:"status"`
	PrevStatus  string    `json:"prev_status"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// announcer runs the post-commit fan-out of an order status change. Every
// step is best-effort: the status change is already durable.
type announcer struct {
	deps Deps
}

func (a announcer) orderChanged(ctx context.Context, o database.Order, prev enum.OrderStatus) {
	next := enum.OrderStatus(o.Status)
	metrics.OrderTransitions.WithLabelValues(string(prev), o.Status).Inc()

	a.deps.Notifier.Notify(ctx, o.CustomerID, o.ID, enum.NotificationOrderStatus,
		lifecycle.StatusMessage(next, o.OrderNumber))

	payload := StatusPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		Status:      o.Status,
		PrevStatus:  string(prev),
		UpdatedAt:   o.UpdatedAt,
	}
	a.deps.Publisher.Publish(realtime.OrderRoom(o.ID), enum.EventOrderStatus, payload)
	if next == enum.OrderStatusReady {
		a.deps.Publisher.Publish(realtime.PartnersRoom, enum.EventDeliveryAvailable, payload)
	}

	evt := events.OrderEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		PrevStatus:  string(prev),
		Status:      o.Status,
		OccurredAt:  a.deps.Now(),
	}
	if pid := partnerOf(o); pid != uuid.Nil {
		evt.PartnerID = &pid
	}
	if err := a.deps.Events.PublishOrderEvent(ctx, evt); err != nil {
		zap.L().Warn("publish order event", zap.String("order_id", o.ID.String()), zap.Error(err))
	}
}
