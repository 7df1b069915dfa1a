package handler

import (
	"time"

	"github.com/foodgram/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type orderResponse struct {
	ID                 uuid.UUID           `json:"id"`
	OrderNumber        string              `json:"order_number"`
	CustomerID         uuid.UUID           `json:"customer_id"`
	DeliveryPartnerID  *uuid.UUID          `json:"delivery_partner_id"`
	Status             string              `json:"status"`
	PaymentStatus      string              `json:"payment_status"`
	PaymentMethod      string              `json:"payment_method"`
	Subtotal           string              `json:"subtotal"`
	DeliveryFee        string              `json:"delivery_fee"`
	TotalAmount        string              `json:"total_amount"`
	DeliveryAddress    string              `json:"delivery_address"`
	DeliveryLat        *float64            `json:"delivery_lat"`
	DeliveryLng        *float64            `json:"delivery_lng"`
	Notes              *string             `json:"notes"`
	CancellationReason *string             `json:"cancellation_reason"`
	AcceptedAt         *time.Time          `json:"accepted_at"`
	PreparingAt        *time.Time          `json:"preparing_at"`
	ReadyAt            *time.Time          `json:"ready_at"`
	PickedUpAt         *time.Time          `json:"picked_up_at"`
	DeliveredAt        *time.Time          `json:"delivered_at"`
	CancelledAt        *time.Time          `json:"cancelled_at"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
	Items              []orderItemResponse `json:"items,omitempty"`
	Delivery           *deliveryResponse   `json:"delivery,omitempty"`
	ClientSecret       string              `json:"client_secret,omitempty"`
}

type orderItemResponse struct {
	ID         uuid.UUID `json:"id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Subtotal   string    `json:"subtotal"`
	Notes      *string   `json:"notes"`
}

type deliveryResponse struct {
	ID                uuid.UUID  `json:"id"`
	OrderID           uuid.UUID  `json:"order_id"`
	DeliveryPartnerID *uuid.UUID `json:"delivery_partner_id"`
	Status            string     `json:"status"`
	FailureReason     *string    `json:"failure_reason"`
	CurrentLat        *float64   `json:"current_lat"`
	CurrentLng        *float64   `json:"current_lng"`
	AcceptedAt        *time.Time `json:"accepted_at"`
	PickedUpAt        *time.Time `json:"picked_up_at"`
	DeliveredAt       *time.Time `json:"delivered_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// deliveryWithOrderResponse is what a partner sees when browsing deliveries.
type deliveryWithOrderResponse struct {
	deliveryResponse
	OrderNumber     string   `json:"order_number"`
	OrderStatus     string   `json:"order_status"`
	DeliveryAddress string   `json:"delivery_address"`
	DeliveryLat     *float64 `json:"delivery_lat"`
	DeliveryLng     *float64 `json:"delivery_lng"`
	TotalAmount     string   `json:"total_amount"`
}

type notificationResponse struct {
	ID        uuid.UUID  `json:"id"`
	OrderID   *uuid.UUID `json:"order_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	IsRead    bool       `json:"is_read"`
	CreatedAt time.Time  `json:"created_at"`
}

type userResponse struct {
	ID         uuid.UUID `json:"id"`
	Phone      string    `json:"phone"`
	FullName   string    `json:"full_name"`
	Role       string    `json:"role"`
	TelegramID *int64    `json:"telegram_id"`
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func timePtr(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}

func floatPtr(f pgtype.Float8) *float64 {
	if !f.Valid {
		return nil
	}
	return &f.Float64
}

func textPtr(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func uuidPtr(u pgtype.UUID) *uuid.UUID {
	if !u.Valid {
		return nil
	}
	id := uuid.UUID(u.Bytes)
	return &id
}

func dbOrderToResponse(o database.Order) orderResponse {
	return orderResponse{
		ID:                 o.ID,
		OrderNumber:        o.OrderNumber,
		CustomerID:         o.CustomerID,
		DeliveryPartnerID:  uuidPtr(o.DeliveryPartnerID),
		Status:             o.Status,
		PaymentStatus:      o.PaymentStatus,
		PaymentMethod:      o.PaymentMethod,
		Subtotal:           numericToString(o.Subtotal),
		DeliveryFee:        numericToString(o.DeliveryFee),
		TotalAmount:        numericToString(o.TotalAmount),
		DeliveryAddress:    o.DeliveryAddress,
		DeliveryLat:        floatPtr(o.DeliveryLat),
		DeliveryLng:        floatPtr(o.DeliveryLng),
		Notes:              textPtr(o.Notes),
		CancellationReason: textPtr(o.CancellationReason),
		AcceptedAt:         timePtr(o.AcceptedAt),
		PreparingAt:        timePtr(o.PreparingAt),
		ReadyAt:            timePtr(o.ReadyAt),
		PickedUpAt:         timePtr(o.PickedUpAt),
		DeliveredAt:        timePtr(o.DeliveredAt),
		CancelledAt:        timePtr(o.CancelledAt),
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

func dbOrderItemToResponse(item database.OrderItem) orderItemResponse {
	return orderItemResponse{
		ID:         item.ID,
		MenuItemID: item.MenuItemID,
		Name:       item.Name,
		Quantity:   item.Quantity,
		UnitPrice:  numericToString(item.UnitPrice),
		Subtotal:   numericToString(item.Subtotal),
		Notes:      textPtr(item.Notes),
	}
}

func dbDeliveryToResponse(d database.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:                d.ID,
		OrderID:           d.OrderID,
		DeliveryPartnerID: uuidPtr(d.DeliveryPartnerID),
		Status:            d.Status,
		FailureReason:     textPtr(d.FailureReason),
		CurrentLat:        floatPtr(d.CurrentLat),
		CurrentLng:        floatPtr(d.CurrentLng),
		AcceptedAt:        timePtr(d.AcceptedAt),
		PickedUpAt:        timePtr(d.PickedUpAt),
		DeliveredAt:       timePtr(d.DeliveredAt),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func dbDeliveryWithOrderToResponse(row database.DeliveryWithOrderRow) deliveryWithOrderResponse {
	return deliveryWithOrderResponse{
		deliveryResponse: dbDeliveryToResponse(row.Delivery),
		OrderNumber:      row.OrderNumber,
		OrderStatus:      row.OrderStatus,
		DeliveryAddress:  row.DeliveryAddress,
		DeliveryLat:      floatPtr(row.DeliveryLat),
		DeliveryLng:      floatPtr(row.DeliveryLng),
		TotalAmount:      numericToString(row.TotalAmount),
	}
}

func dbNotificationToResponse(n database.Notification) notificationResponse {
	return notificationResponse{
		ID:        n.ID,
		OrderID:   uuidPtr(n.OrderID),
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func dbUserToResponse(u database.User) userResponse {
	resp := userResponse{
		ID:       u.ID,
		Phone:    u.Phone,
		FullName: u.FullName,
		Role:     u.Role,
	}
	if u.TelegramID.Valid {
		resp.TelegramID = &u.TelegramID.Int64
	}
	return resp
}
