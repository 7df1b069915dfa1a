package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, phone, full_name, password_hash, role, telegram_id, is_active, created_at, updated_at`

func scanUser(row scanner) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.Phone,
		&i.FullName,
		&i.PasswordHash,
		&i.Role,
		&i.TelegramID,
		&i.IsActive,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (phone, full_name, password_hash, role, telegram_id)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + userColumns

type CreateUserParams struct {
	Phone        string
	FullName     string
	PasswordHash string
	Role         string
	TelegramID   pgtype.Int8
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.Phone,
		arg.FullName,
		arg.PasswordHash,
		arg.Role,
		arg.TelegramID,
	)
	return scanUser(row)
}

const getUserByPhone = `-- name: GetUserByPhone :one
SELECT ` + userColumns + ` FROM users
WHERE phone = $1 AND is_active = true`

func (q *Queries) GetUserByPhone(ctx context.Context, phone string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByPhone, phone))
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + ` FROM users
WHERE id = $1 AND is_active = true`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const upsertUserByPhone = `-- name: UpsertUserByPhone :one
INSERT INTO users (phone, full_name, password_hash, role, telegram_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (phone) DO UPDATE
SET full_name = EXCLUDED.full_name,
    password_hash = EXCLUDED.password_hash,
    role = EXCLUDED.role,
    telegram_id = EXCLUDED.telegram_id,
    updated_at = now()
RETURNING ` + userColumns

// UpsertUserByPhone is used by the seed command so it can run repeatedly.
func (q *Queries) UpsertUserByPhone(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, upsertUserByPhone,
		arg.Phone,
		arg.FullName,
		arg.PasswordHash,
		arg.Role,
		arg.TelegramID,
	)
	return scanUser(row)
}
