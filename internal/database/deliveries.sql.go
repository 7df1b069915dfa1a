package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const deliveryColumns = `id, order_id, delivery_partner_id, status, failure_reason, current_lat, current_lng,
    accepted_at, picked_up_at, delivered_at, created_at, updated_at`

func scanDelivery(row scanner) (Delivery, error) {
	var i Delivery
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.DeliveryPartnerID,
		&i.Status,
		&i.FailureReason,
		&i.CurrentLat,
		&i.CurrentLng,
		&i.AcceptedAt,
		&i.PickedUpAt,
		&i.DeliveredAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createDelivery = `-- name: CreateDelivery :one
INSERT INTO deliveries (order_id) VALUES ($1)
RETURNING ` + deliveryColumns

func (q *Queries) CreateDelivery(ctx context.Context, orderID uuid.UUID) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, createDelivery, orderID))
}

const getDelivery = `-- name: GetDelivery :one
SELECT ` + deliveryColumns + ` FROM deliveries
WHERE id = $1`

func (q *Queries) GetDelivery(ctx context.Context, id uuid.UUID) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, getDelivery, id))
}

const getDeliveryByOrder = `-- name: GetDeliveryByOrder :one
SELECT ` + deliveryColumns + ` FROM deliveries
WHERE order_id = $1`

func (q *Queries) GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, getDeliveryByOrder, orderID))
}

const claimDelivery = `-- name: ClaimDelivery :one
UPDATE deliveries
SET status              = 'accepted',
    delivery_partner_id = $2,
    accepted_at         = now(),
    updated_at          = now()
WHERE id = $1
  AND status = 'pending'
  AND (delivery_partner_id IS NULL OR delivery_partner_id = $2)
RETURNING ` + deliveryColumns

type ClaimDeliveryParams struct {
	ID                uuid.UUID
	DeliveryPartnerID uuid.UUID
}

// ClaimDelivery is the single check-and-set that decides who gets a delivery.
// Under concurrent calls exactly one caller gets the row back; every other
// caller gets pgx.ErrNoRows.
func (q *Queries) ClaimDelivery(ctx context.Context, arg ClaimDeliveryParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, claimDelivery, arg.ID, arg.DeliveryPartnerID))
}

const assignDeliveryPartner = `-- name: AssignDeliveryPartner :one
UPDATE deliveries
SET delivery_partner_id = $2,
    updated_at          = now()
WHERE id = $1
  AND status = 'pending'
  AND delivery_partner_id IS NULL
RETURNING ` + deliveryColumns

type AssignDeliveryPartnerParams struct {
	ID                uuid.UUID
	DeliveryPartnerID uuid.UUID
}

// AssignDeliveryPartner reserves a pending delivery for one partner without
// claiming it.
func (q *Queries) AssignDeliveryPartner(ctx context.Context, arg AssignDeliveryPartnerParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, assignDeliveryPartner, arg.ID, arg.DeliveryPartnerID))
}

const updateDeliveryStatus = `-- name: UpdateDeliveryStatus :one
UPDATE deliveries
SET status         = $3,
    picked_up_at   = COALESCE($4::timestamptz, picked_up_at),
    delivered_at   = COALESCE($5::timestamptz, delivered_at),
    failure_reason = COALESCE($6::text, failure_reason),
    updated_at     = now()
WHERE id = $1 AND status = $2
RETURNING ` + deliveryColumns

type UpdateDeliveryStatusParams struct {
	ID            uuid.UUID
	PrevStatus    string
	Status        string
	PickedUpAt    pgtype.Timestamptz
	DeliveredAt   pgtype.Timestamptz
	FailureReason pgtype.Text
}

func (q *Queries) UpdateDeliveryStatus(ctx context.Context, arg UpdateDeliveryStatusParams) (Delivery, error) {
	row := q.db.QueryRow(ctx, updateDeliveryStatus,
		arg.ID,
		arg.PrevStatus,
		arg.Status,
		arg.PickedUpAt,
		arg.DeliveredAt,
		arg.FailureReason,
	)
	return scanDelivery(row)
}

const syncDeliveryForOrder = `-- name: SyncDeliveryForOrder :execrows
UPDATE deliveries
SET status         = $2,
    picked_up_at   = COALESCE($3::timestamptz, picked_up_at),
    delivered_at   = COALESCE($4::timestamptz, delivered_at),
    failure_reason = COALESCE($5::text, failure_reason),
    updated_at     = now()
WHERE order_id = $1
  AND status NOT IN ('delivered', 'failed')`

type SyncDeliveryForOrderParams struct {
	OrderID       uuid.UUID
	Status        string
	PickedUpAt    pgtype.Timestamptz
	DeliveredAt   pgtype.Timestamptz
	FailureReason pgtype.Text
}

// SyncDeliveryForOrder forces the order's delivery into Status. Deliveries
// that already finished are left alone.
func (q *Queries) SyncDeliveryForOrder(ctx context.Context, arg SyncDeliveryForOrderParams) (int64, error) {
	result, err := q.db.Exec(ctx, syncDeliveryForOrder,
		arg.OrderID,
		arg.Status,
		arg.PickedUpAt,
		arg.DeliveredAt,
		arg.FailureReason,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const updateDeliveryLocation = `-- name: UpdateDeliveryLocation :one
UPDATE deliveries
SET current_lat = $2,
    current_lng = $3,
    updated_at  = now()
WHERE id = $1
RETURNING ` + deliveryColumns

type UpdateDeliveryLocationParams struct {
	ID         uuid.UUID
	CurrentLat pgtype.Float8
	CurrentLng pgtype.Float8
}

func (q *Queries) UpdateDeliveryLocation(ctx context.Context, arg UpdateDeliveryLocationParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRow(ctx, updateDeliveryLocation, arg.ID, arg.CurrentLat, arg.CurrentLng))
}

// DeliveryWithOrderRow is a delivery plus the order fields a partner needs
// to decide whether to take it.
type DeliveryWithOrderRow struct {
	Delivery        Delivery
	OrderNumber     string
	OrderStatus     string
	DeliveryAddress string
	DeliveryLat     pgtype.Float8
	DeliveryLng     pgtype.Float8
	TotalAmount     pgtype.Numeric
}

func scanDeliveryWithOrder(row scanner) (DeliveryWithOrderRow, error) {
	var i DeliveryWithOrderRow
	d := &i.Delivery
	err := row.Scan(
		&d.ID,
		&d.OrderID,
		&d.DeliveryPartnerID,
		&d.Status,
		&d.FailureReason,
		&d.CurrentLat,
		&d.CurrentLng,
		&d.AcceptedAt,
		&d.PickedUpAt,
		&d.DeliveredAt,
		&d.CreatedAt,
		&d.UpdatedAt,
		&i.OrderNumber,
		&i.OrderStatus,
		&i.DeliveryAddress,
		&i.DeliveryLat,
		&i.DeliveryLng,
		&i.TotalAmount,
	)
	return i, err
}

const deliveryWithOrderSelect = `SELECT d.id, d.order_id, d.delivery_partner_id, d.status, d.failure_reason,
    d.current_lat, d.current_lng, d.accepted_at, d.picked_up_at, d.delivered_at,
    d.created_at, d.updated_at,
    o.order_number, o.status, o.delivery_address, o.delivery_lat, o.delivery_lng, o.total_amount
FROM deliveries d
JOIN orders o ON o.id = d.order_id`

const listAvailableDeliveries = `-- name: ListAvailableDeliveries :many
` + deliveryWithOrderSelect + `
WHERE d.status = 'pending'
  AND (d.delivery_partner_id IS NULL OR d.delivery_partner_id = $1)
  AND o.status = 'ready'
ORDER BY d.created_at`

// ListAvailableDeliveries returns open deliveries of ready orders plus those
// reserved for partnerID.
func (q *Queries) ListAvailableDeliveries(ctx context.Context, partnerID uuid.UUID) ([]DeliveryWithOrderRow, error) {
	return q.listDeliveriesWithOrder(ctx, listAvailableDeliveries, partnerID)
}

const listPartnerDeliveries = `-- name: ListPartnerDeliveries :many
` + deliveryWithOrderSelect + `
WHERE d.delivery_partner_id = $1
  AND d.status <> 'pending'
ORDER BY d.updated_at DESC
LIMIT $2`

type ListPartnerDeliveriesParams struct {
	DeliveryPartnerID uuid.UUID
	Limit             int32
}

func (q *Queries) ListPartnerDeliveries(ctx context.Context, arg ListPartnerDeliveriesParams) ([]DeliveryWithOrderRow, error) {
	return q.listDeliveriesWithOrder(ctx, listPartnerDeliveries, arg.DeliveryPartnerID, arg.Limit)
}

func (q *Queries) listDeliveriesWithOrder(ctx context.Context, query string, args ...interface{}) ([]DeliveryWithOrderRow, error) {
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DeliveryWithOrderRow{}
	for rows.Next() {
		i, err := scanDeliveryWithOrder(rows)
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
