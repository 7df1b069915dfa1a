package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           uuid.UUID
	Phone        string
	FullName     string
	PasswordHash string
	Role         string
	TelegramID   pgtype.Int8
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Category struct {
	ID        uuid.UUID
	Name      string
	SortOrder int32
	IsActive  bool
	CreatedAt time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description string
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
	IsAvailable bool
	SalesCount  int32
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Order struct {
	ID                 uuid.UUID
	OrderNumber        string
	CustomerID         uuid.UUID
	DeliveryPartnerID  pgtype.UUID
	Status             string
	PaymentStatus      string
	PaymentMethod      string
	PaymentIntentID    pgtype.Text
	Subtotal           pgtype.Numeric
	DeliveryFee        pgtype.Numeric
	TotalAmount        pgtype.Numeric
	DeliveryAddress    string
	DeliveryLat        pgtype.Float8
	DeliveryLng        pgtype.Float8
	Notes              pgtype.Text
	CancellationReason pgtype.Text
	AcceptedAt         pgtype.Timestamptz
	PreparingAt        pgtype.Timestamptz
	ReadyAt            pgtype.Timestamptz
	PickedUpAt         pgtype.Timestamptz
	DeliveredAt        pgtype.Timestamptz
	CancelledAt        pgtype.Timestamptz
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
	Notes      pgtype.Text
	CreatedAt  time.Time
}

type Delivery struct {
	ID                uuid.UUID
	OrderID           uuid.UUID
	DeliveryPartnerID pgtype.UUID
	Status            string
	FailureReason     pgtype.Text
	CurrentLat        pgtype.Float8
	CurrentLng        pgtype.Float8
	AcceptedAt        pgtype.Timestamptz
	PickedUpAt        pgtype.Timestamptz
	DeliveredAt       pgtype.Timestamptz
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Notification struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	OrderID   pgtype.UUID
	Type      string
	Title     string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
