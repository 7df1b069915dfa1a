package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_id, delivery_partner_id, status, payment_status,
    payment_method, payment_intent_id, subtotal, delivery_fee, total_amount,
    delivery_address, delivery_lat, delivery_lng, notes, cancellation_reason,
    accepted_at, preparing_at, ready_at, picked_up_at, delivered_at, cancelled_at,
    created_at, updated_at`

func scanOrder(row scanner) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.CustomerID,
		&i.DeliveryPartnerID,
		&i.Status,
		&i.PaymentStatus,
		&i.PaymentMethod,
		&i.PaymentIntentID,
		&i.Subtotal,
		&i.DeliveryFee,
		&i.TotalAmount,
		&i.DeliveryAddress,
		&i.DeliveryLat,
		&i.DeliveryLng,
		&i.Notes,
		&i.CancellationReason,
		&i.AcceptedAt,
		&i.PreparingAt,
		&i.ReadyAt,
		&i.PickedUpAt,
		&i.DeliveredAt,
		&i.CancelledAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, customer_id, payment_method, subtotal, delivery_fee, total_amount,
    delivery_address, delivery_lat, delivery_lng, notes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber     string
	CustomerID      uuid.UUID
	PaymentMethod   string
	Subtotal        pgtype.Numeric
	DeliveryFee     pgtype.Numeric
	TotalAmount     pgtype.Numeric
	DeliveryAddress string
	DeliveryLat     pgtype.Float8
	DeliveryLng     pgtype.Float8
	Notes           pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.CustomerID,
		arg.PaymentMethod,
		arg.Subtotal,
		arg.DeliveryFee,
		arg.TotalAmount,
		arg.DeliveryAddress,
		arg.DeliveryLat,
		arg.DeliveryLng,
		arg.Notes,
	)
	return scanOrder(row)
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (order_id, menu_item_id, name, quantity, unit_price, subtotal, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, menu_item_id, name, quantity, unit_price, subtotal, notes, created_at`

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
	Notes      pgtype.Text
}

func scanOrderItem(row scanner) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.MenuItemID,
		&i.Name,
		&i.Quantity,
		&i.UnitPrice,
		&i.Subtotal,
		&i.Notes,
		&i.CreatedAt,
	)
	return i, err
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.MenuItemID,
		arg.Name,
		arg.Quantity,
		arg.UnitPrice,
		arg.Subtotal,
		arg.Notes,
	)
	return scanOrderItem(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + ` FROM orders
WHERE id = $1
FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::uuid IS NULL OR customer_id = $1)
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

type ListOrdersParams struct {
	CustomerID pgtype.UUID
	Status     pgtype.Text
	Limit      int32
	Offset     int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.CustomerID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listOrderItemsByOrder = `-- name: ListOrderItemsByOrder :many
SELECT id, order_id, menu_item_id, name, quantity, unit_price, subtotal, notes, created_at
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []OrderItem{}
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status              = $3,
    accepted_at         = COALESCE($4::timestamptz, accepted_at),
    preparing_at        = COALESCE($5::timestamptz, preparing_at),
    ready_at            = COALESCE($6::timestamptz, ready_at),
    picked_up_at        = COALESCE($7::timestamptz, picked_up_at),
    delivered_at        = COALESCE($8::timestamptz, delivered_at),
    cancelled_at        = COALESCE($9::timestamptz, cancelled_at),
    cancellation_reason = COALESCE($10::text, cancellation_reason),
    updated_at          = now()
WHERE id = $1 AND status = $2
RETURNING ` + orderColumns

// UpdateOrderStatusParams moves an order from PrevStatus to Status. Null
// timestamps leave the column untouched.
type UpdateOrderStatusParams struct {
	ID                 uuid.UUID
	PrevStatus         string
	Status             string
	AcceptedAt         pgtype.Timestamptz
	PreparingAt        pgtype.Timestamptz
	ReadyAt            pgtype.Timestamptz
	PickedUpAt         pgtype.Timestamptz
	DeliveredAt        pgtype.Timestamptz
	CancelledAt        pgtype.Timestamptz
	CancellationReason pgtype.Text
}

// UpdateOrderStatus returns pgx.ErrNoRows when the order is no longer in
// PrevStatus.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.PrevStatus,
		arg.Status,
		arg.AcceptedAt,
		arg.PreparingAt,
		arg.ReadyAt,
		arg.PickedUpAt,
		arg.DeliveredAt,
		arg.CancelledAt,
		arg.CancellationReason,
	)
	return scanOrder(row)
}

const assignOrderPartner = `-- name: AssignOrderPartner :one
UPDATE orders
SET delivery_partner_id = $2,
    status              = 'out_for_delivery',
    picked_up_at        = COALESCE(picked_up_at, now()),
    updated_at          = now()
WHERE id = $1 AND status = 'ready'
RETURNING ` + orderColumns

type AssignOrderPartnerParams struct {
	ID                uuid.UUID
	DeliveryPartnerID uuid.UUID
}

// AssignOrderPartner hands a ready order to the partner who claimed its
// delivery. Returns pgx.ErrNoRows when the order is not ready.
func (q *Queries) AssignOrderPartner(ctx context.Context, arg AssignOrderPartnerParams) (Order, error) {
	row := q.db.QueryRow(ctx, assignOrderPartner, arg.ID, arg.DeliveryPartnerID)
	return scanOrder(row)
}

const setOrderPaymentIntent = `-- name: SetOrderPaymentIntent :exec
UPDATE orders SET payment_intent_id = $2, updated_at = now()
WHERE id = $1`

type SetOrderPaymentIntentParams struct {
	ID              uuid.UUID
	PaymentIntentID pgtype.Text
}

func (q *Queries) SetOrderPaymentIntent(ctx context.Context, arg SetOrderPaymentIntentParams) error {
	_, err := q.db.Exec(ctx, setOrderPaymentIntent, arg.ID, arg.PaymentIntentID)
	return err
}

const updateOrderPaymentStatus = `-- name: UpdateOrderPaymentStatus :one
UPDATE orders SET payment_status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderPaymentStatusParams struct {
	ID            uuid.UUID
	PaymentStatus string
}

func (q *Queries) UpdateOrderPaymentStatus(ctx context.Context, arg UpdateOrderPaymentStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderPaymentStatus, arg.ID, arg.PaymentStatus))
}

const getOrderByPaymentIntentForUpdate = `-- name: GetOrderByPaymentIntentForUpdate :one
SELECT ` + orderColumns + ` FROM orders
WHERE payment_intent_id = $1
FOR UPDATE`

// GetOrderByPaymentIntentForUpdate locks the order a payment intent belongs to.
func (q *Queries) GetOrderByPaymentIntentForUpdate(ctx context.Context, paymentIntentID string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByPaymentIntentForUpdate, paymentIntentID))
}
