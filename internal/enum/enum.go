package enum

// ── Group A: State machines (CHECK constrained in DB) ──

// OrderStatus is the fulfillment status of an order.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusPaid           OrderStatus = "paid"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// DeliveryStatus is the courier-facing status of a delivery.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusAccepted  DeliveryStatus = "accepted"
	DeliveryStatusPickedUp  DeliveryStatus = "picked_up"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// DeliveryStatuses lists every delivery status.
var DeliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusAssigned,
	DeliveryStatusAccepted,
	DeliveryStatusPickedUp,
	DeliveryStatusInTransit,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
}

// PaymentStatus tracks the money side of an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

// Role is the role carried in a user's access token.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"

	// RoleSystem is never stored; it identifies server-initiated transitions
	// such as payment webhooks.
	RoleSystem Role = "system"
)

const (
	PaymentMethodCard = "card"
	PaymentMethodCash = "cash"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	NotificationOrderStatus = "order_status"
	NotificationDelivery    = "delivery"
	NotificationPayment     = "payment"
)

// Realtime event names pushed over websocket rooms.
const (
	EventOrderStatus       = "order:status"
	EventNotification      = "notification"
	EventDeliveryAvailable = "delivery:available"
	EventDeliveryStatus    = "delivery:status"
	EventDeliveryLocation  = "delivery:location"
)
