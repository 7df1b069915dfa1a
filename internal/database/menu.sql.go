package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, category_id, name, description, price, image_url, is_available, sales_count, created_at, updated_at`

func scanMenuItem(row scanner) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.CategoryID,
		&i.Name,
		&i.Description,
		&i.Price,
		&i.ImageUrl,
		&i.IsAvailable,
		&i.SalesCount,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listCategories = `-- name: ListCategories :many
SELECT id, name, sort_order, is_active, created_at FROM categories
WHERE is_active = true
ORDER BY sort_order, name`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Category{}
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.SortOrder, &i.IsActive, &i.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createCategory = `-- name: CreateCategory :one
INSERT INTO categories (name, sort_order)
VALUES ($1, $2)
RETURNING id, name, sort_order, is_active, created_at`

type CreateCategoryParams struct {
	Name      string
	SortOrder int32
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	row := q.db.QueryRow(ctx, createCategory, arg.Name, arg.SortOrder)
	var i Category
	err := row.Scan(&i.ID, &i.Name, &i.SortOrder, &i.IsActive, &i.CreatedAt)
	return i, err
}

const listMenuItems = `-- name: ListMenuItems :many
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE is_available = true
  AND ($1::uuid IS NULL OR category_id = $1)
ORDER BY
  CASE WHEN $2::bool THEN sales_count END DESC,
  name`

type ListMenuItemsParams struct {
	CategoryID  pgtype.UUID
	SortPopular bool
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, arg.CategoryID, arg.SortPopular)
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

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (category_id, name, description, price, image_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	CategoryID  uuid.UUID
	Name        string
	Description string
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.CategoryID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.ImageUrl,
	)
	return scanMenuItem(row)
}

const getMenuItemForOrder = `-- name: GetMenuItemForOrder :one
SELECT id, name, price, is_available FROM menu_items
WHERE id = $1`

type GetMenuItemForOrderRow struct {
	ID          uuid.UUID
	Name        string
	Price       pgtype.Numeric
	IsAvailable bool
}

func (q *Queries) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (GetMenuItemForOrderRow, error) {
	row := q.db.QueryRow(ctx, getMenuItemForOrder, id)
	var i GetMenuItemForOrderRow
	err := row.Scan(&i.ID, &i.Name, &i.Price, &i.IsAvailable)
	return i, err
}

const incrementMenuItemSales = `-- name: IncrementMenuItemSales :exec
UPDATE menu_items m
SET sales_count = m.sales_count + oi.qty,
    updated_at = now()
FROM (
    SELECT menu_item_id, SUM(quantity)::int AS qty
    FROM order_items
    WHERE order_id = $1
    GROUP BY menu_item_id
) oi
WHERE m.id = oi.menu_item_id`

// IncrementMenuItemSales adds each item's ordered quantity to its sales_count.
func (q *Queries) IncrementMenuItemSales(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx, incrementMenuItemSales, orderID)
	return err
}
