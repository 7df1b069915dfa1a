package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const countOrdersByStatus = `-- name: CountOrdersByStatus :many
SELECT status, COUNT(*)::bigint AS order_count
FROM orders
WHERE created_at >= $1 AND created_at < $2
GROUP BY status
ORDER BY status`

type CountOrdersByStatusParams struct {
	StartDate time.Time
	EndDate   time.Time
}

type CountOrdersByStatusRow struct {
	Status     string
	OrderCount int64
}

func (q *Queries) CountOrdersByStatus(ctx context.Context, arg CountOrdersByStatusParams) ([]CountOrdersByStatusRow, error) {
	rows, err := q.db.Query(ctx, countOrdersByStatus, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []CountOrdersByStatusRow{}
	for rows.Next() {
		var i CountOrdersByStatusRow
		if err := rows.Scan(&i.Status, &i.OrderCount); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRevenueSummary = `-- name: GetRevenueSummary :one
SELECT COUNT(*)::bigint AS delivered_orders,
       COALESCE(SUM(total_amount), 0)::numeric(14,2) AS revenue,
       COALESCE(SUM(delivery_fee), 0)::numeric(14,2) AS delivery_fees
FROM orders
WHERE status = 'delivered'
  AND delivered_at >= $1 AND delivered_at < $2`

type GetRevenueSummaryParams struct {
	StartDate time.Time
	EndDate   time.Time
}

type GetRevenueSummaryRow struct {
	DeliveredOrders int64
	Revenue         pgtype.Numeric
	DeliveryFees    pgtype.Numeric
}

func (q *Queries) GetRevenueSummary(ctx context.Context, arg GetRevenueSummaryParams) (GetRevenueSummaryRow, error) {
	row := q.db.QueryRow(ctx, getRevenueSummary, arg.StartDate, arg.EndDate)
	var i GetRevenueSummaryRow
	err := row.Scan(&i.DeliveredOrders, &i.Revenue, &i.DeliveryFees)
	return i, err
}

const listTopMenuItems = `-- name: ListTopMenuItems :many
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE sales_count > 0
ORDER BY sales_count DESC, name
LIMIT $1`

func (q *Queries) ListTopMenuItems(ctx context.Context, limit int32) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listTopMenuItems, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		i, err := scanMenuItem(rows)
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
