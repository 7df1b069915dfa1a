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
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID    = errors.New("invalid menu_item_id")
	ErrMenuItemNotFound     = errors.New("menu item not found")
	ErrMenuItemUnavailable  = errors.New("menu item is not available")
	ErrDeliveryAddress      = errors.New("delivery_address is required")
	ErrInvalidPaymentMethod = errors.New("payment_method must be card or cash")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrOrderNotFound        = errors.New("order not found")
	ErrConcurrentUpdate     = errors.New("order was changed by another request")
)

// transitionStore is what applying an order transition needs.
type transitionStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	IncrementMenuItemSales(ctx context.Context, orderID uuid.UUID) error
	SyncDeliveryForOrder(ctx context.Context, arg database.SyncDeliveryForOrderParams) (int64, error)
	UpdateOrderPaymentStatus(ctx context.Context, arg database.UpdateOrderPaymentStatusParams) (database.Order, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	transitionStore
	GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateDelivery(ctx context.Context, orderID uuid.UUID) (database.Delivery, error)
	SetOrderPaymentIntent(ctx context.Context, arg database.SetOrderPaymentIntentParams) error
	GetOrderByPaymentIntentForUpdate(ctx context.Context, paymentIntentID string) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	CustomerID      uuid.UUID
	DeliveryAddress string
	DeliveryLat     *float64
	DeliveryLng     *float64
	Notes           string
	PaymentMethod   string
	Items           []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
	Notes      string
}

// CreateOrderResult is the full created order with items and its delivery.
type CreateOrderResult struct {
	Order        database.Order
	Items        []database.OrderItem
	Delivery     database.Delivery
	ClientSecret string
}

// OrderService handles order business logic.
type OrderService struct {
	pool        TxBeginner
	newStore    NewOrderStore
	deliveryFee decimal.Decimal
	deps        Deps
	announce    announcer
}

// NewOrderService creates a new OrderService. deliveryFee is added to every
// order's subtotal.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, deliveryFee decimal.Decimal, deps Deps) *OrderService {
	deps = deps.withDefaults()
	return &OrderService{
		pool:        pool,
		newStore:    newStore,
		deliveryFee: deliveryFee,
		deps:        deps,
		announce:    announcer{deps: deps},
	}
}

// CreateOrder validates the cart, prices it and writes the order, its items
// and its delivery in one transaction. Retries up to maxOrderNumberRetries
// times on order_number unique constraint violations.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if req.DeliveryAddress == "" {
		return nil, ErrDeliveryAddress
	}
	switch req.PaymentMethod {
	case enum.PaymentMethodCard, enum.PaymentMethodCash:
	default:
		return nil, ErrInvalidPaymentMethod
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			metrics.OrdersCreated.WithLabelValues(req.PaymentMethod).Inc()
			s.deps.Notifier.Notify(ctx, result.Order.CustomerID, result.Order.ID, enum.NotificationOrderStatus,
				lifecycle.StatusMessage(enum.OrderStatusPending, result.Order.OrderNumber))
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the order number.
func isOrderNumberConflict(err error) bool {
	return database.IsDuplicate(err)
}

type pricedItem struct {
	params   database.CreateOrderItemParams
	subtotal decimal.Decimal
}

// priceItems validates every cart line against the menu and computes line
// subtotals from current menu prices.
func priceItems(ctx context.Context, store OrderStore, items []CreateOrderItemRequest) ([]pricedItem, decimal.Decimal, error) {
	subtotal := decimal.Zero
	priced := make([]pricedItem, 0, len(items))

	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}
		mi, err := store.GetMenuItemForOrder(ctx, menuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, decimal.Zero, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, decimal.Zero, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if !mi.IsAvailable {
			return nil, decimal.Zero, fmt.Errorf("item[%d]: %s: %w", i, mi.Name, ErrMenuItemUnavailable)
		}

		unitPrice := numericToDecimal(mi.Price)
		lineSubtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		subtotal = subtotal.Add(lineSubtotal)

		priced = append(priced, pricedItem{
			params: database.CreateOrderItemParams{
				MenuItemID: menuItemID,
				Name:       mi.Name,
				Quantity:   item.Quantity,
				UnitPrice:  decimalToNumeric(unitPrice),
				Subtotal:   decimalToNumeric(lineSubtotal),
				Notes:      textOrNull(item.Notes),
			},
			subtotal: lineSubtotal,
		})
	}
	return priced, subtotal, nil
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	items, subtotal, err := priceItems(ctx, store, req.Items)
	if err != nil {
		return nil, err
	}
	total := subtotal.Add(s.deliveryFee)

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		OrderNumber:     newOrderNumber(s.deps.Now()),
		CustomerID:      req.CustomerID,
		PaymentMethod:   req.PaymentMethod,
		Subtotal:        decimalToNumeric(subtotal),
		DeliveryFee:     decimalToNumeric(s.deliveryFee),
		TotalAmount:     decimalToNumeric(total),
		DeliveryAddress: req.DeliveryAddress,
		DeliveryLat:     floatOrNull(req.DeliveryLat),
		DeliveryLng:     floatOrNull(req.DeliveryLng),
		Notes:           textOrNull(req.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	created := make([]database.OrderItem, 0, len(items))
	for _, it := range items {
		it.params.OrderID = order.ID
		row, err := store.CreateOrderItem(ctx, it.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		created = append(created, row)
	}

	delivery, err := store.CreateDelivery(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("create delivery: %w", err)
	}

	var clientSecret string
	if req.PaymentMethod == enum.PaymentMethodCard {
		intent, err := s.deps.Payments.CreateIntent(ctx, payment.IntentRequest{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			CustomerID:  order.CustomerID,
			Amount:      total,
		})
		if err != nil {
			return nil, fmt.Errorf("create payment intent: %w", err)
		}
		if err := store.SetOrderPaymentIntent(ctx, database.SetOrderPaymentIntentParams{
			ID:              order.ID,
			PaymentIntentID: pgtype.Text{String: intent.ID, Valid: true},
		}); err != nil {
			return nil, fmt.Errorf("set payment intent: %w", err)
		}
		order.PaymentIntentID = pgtype.Text{String: intent.ID, Valid: true}
		clientSecret = intent.ClientSecret
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{
		Order:        order,
		Items:        created,
		Delivery:     delivery,
		ClientSecret: clientSecret,
	}, nil
}
