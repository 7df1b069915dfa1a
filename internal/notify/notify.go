// Package notify records user notifications and pushes them over websocket
// and Telegram.
package notify

import (
	"context"
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/foodgram/api/internal/enum"
	"github.com/foodgram/api/internal/lifecycle"
	"github.com/foodgram/api/internal/realtime"
	"github.com/foodgram/api/internal/telegram"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

// Store defines the DB methods the dispatcher needs.
// Satisfied by *database.Queries.
type Store interface {
	CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// Publisher pushes a named event to a websocket room.
type Publisher interface {
	Publish(room, event string, payload any)
}

// Payload is the websocket form of a notification.
type Payload struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	CreatedAt time.Time  `json:"created_at"`
}

// Dispatcher stores a notification, pushes it to the user's room and, when
// the user linked Telegram, sends it through the bot matching their role.
type Dispatcher struct {
	store     Store
	publisher Publisher
	customers telegram.Sender
	partners  telegram.Sender
}

// NewDispatcher wires the dispatcher. Nil senders disable that bot.
func NewDispatcher(store Store, publisher Publisher, customerBot, deliveryBot telegram.Sender) *Dispatcher {
	if customerBot == nil {
		customerBot = telegram.Nop{}
	}
	if deliveryBot == nil {
		deliveryBot = telegram.Nop{}
	}
	return &Dispatcher{
		store:     store,
		publisher: publisher,
		customers: customerBot,
		partners:  deliveryBot,
	}
}

// Notify never fails the caller. orderID may be uuid.Nil.
func (d *Dispatcher) Notify(ctx context.Context, userID, orderID uuid.UUID, kind string, msg lifecycle.Message) {
	log := zap.L().With(zap.String("user_id", userID.String()), zap.String("type", kind))

	params := database.CreateNotificationParams{
		UserID:  userID,
		Type:    kind,
		Title:   msg.Title,
		Message: msg.Body,
	}
	if orderID != uuid.Nil {
		params.OrderID = pgtype.UUID{Bytes: orderID, Valid: true}
	}
	n, err := d.store.CreateNotification(ctx, params)
	if err != nil {
		log.Error("store notification", zap.Error(err))
		return
	}

	d.publisher.Publish(realtime.UserRoom(userID), enum.EventNotification, toPayload(n))

	user, err := d.store.GetUserByID(ctx, userID)
	if err != nil {
		log.Warn("load notification recipient", zap.Error(err))
		return
	}
	if !user.TelegramID.Valid {
		return
	}
	bot := d.customers
	if enum.Role(user.Role) == enum.RoleDelivery {
		bot = d.partners
	}
	if err := bot.Send(user.TelegramID.Int64, telegram.Format(msg.Title, msg.Body)); err != nil {
		log.Warn("telegram push", zap.Error(err))
	}
}

func toPayload(n database.Notification) Payload {
	p := Payload{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
	}
	if n.OrderID.Valid {
		id := uuid.UUID(n.OrderID.Bytes)
		p.OrderID = &id
	}
	return p
}
