package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const notificationColumns = `id, user_id, order_id, type, title, message, is_read, created_at`

func scanNotification(row scanner) (Notification, error) {
	var i Notification
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.OrderID,
		&i.Type,
		&i.Title,
		&i.Message,
		&i.IsRead,
		&i.CreatedAt,
	)
	return i, err
}

const createNotification = `-- name: CreateNotification :one
INSERT INTO notifications (user_id, order_id, type, title, message)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + notificationColumns

type CreateNotificationParams struct {
	UserID  uuid.UUID
	OrderID pgtype.UUID
	Type    string
	Title   string
	Message string
}

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	row := q.db.QueryRow(ctx, createNotification,
		arg.UserID,
		arg.OrderID,
		arg.Type,
		arg.Title,
		arg.Message,
	)
	return scanNotification(row)
}

const listNotificationsByUser = `-- name: ListNotificationsByUser :many
SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

type ListNotificationsByUserParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListNotificationsByUser(ctx context.Context, arg ListNotificationsByUserParams) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listNotificationsByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Notification{}
	for rows.Next() {
		i, err := scanNotification(rows)
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

const markNotificationRead = `-- name: MarkNotificationRead :one
UPDATE notifications SET is_read = true
WHERE id = $1 AND user_id = $2
RETURNING ` + notificationColumns

type MarkNotificationReadParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (Notification, error) {
	return scanNotification(q.db.QueryRow(ctx, markNotificationRead, arg.ID, arg.UserID))
}
