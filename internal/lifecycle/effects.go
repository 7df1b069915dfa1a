package lifecycle

import (
	"fmt"

	"github.com/foodgram/api/internal/enum"
)

// Stamp names the order timestamp column a transition sets.
type Stamp int

const (
	StampNone Stamp = iota
	StampAccepted
	StampPreparing
	StampReady
	StampPickedUp
	StampDelivered
	StampCancelled
)

// CancelledDeliveryReason is recorded on a delivery whose order was cancelled.
const CancelledDeliveryReason = "Order cancelled"

// DeliverySync describes how the linked delivery is forced to follow an order
// transition. It bypasses the delivery table on purpose: the order is the
// source of truth and the delivery row mirrors it.
type DeliverySync struct {
	Status         enum.DeliveryStatus
	StampPickedUp  bool
	StampDelivered bool
	FailureReason  string
}

// Plan is the full set of writes that accompany a status change. All of it is
// applied in the same transaction as the status write.
type Plan struct {
	Stamp      Stamp
	CountSales bool
	Delivery   *DeliverySync
}

// PlanFor returns the side effects of moving an order into next.
func PlanFor(next enum.OrderStatus) Plan {
	switch next {
	case enum.OrderStatusConfirmed:
		return Plan{Stamp: StampAccepted, CountSales: true}
	case enum.OrderStatusPreparing:
		return Plan{Stamp: StampPreparing}
	case enum.OrderStatusReady:
		return Plan{Stamp: StampReady}
	case enum.OrderStatusOutForDelivery:
		return Plan{
			Stamp:    StampPickedUp,
			Delivery: &DeliverySync{Status: enum.DeliveryStatusInTransit, StampPickedUp: true},
		}
	case enum.OrderStatusDelivered:
		return Plan{
			Stamp:    StampDelivered,
			Delivery: &DeliverySync{Status: enum.DeliveryStatusDelivered, StampDelivered: true},
		}
	case enum.OrderStatusCancelled:
		return Plan{
			Stamp:    StampCancelled,
			Delivery: &DeliverySync{Status: enum.DeliveryStatusFailed, FailureReason: CancelledDeliveryReason},
		}
	}
	return Plan{}
}

// Message is the customer-facing text for a notification.
type Message struct {
	Title string
	Body  string
}

// StatusMessage returns the notification sent to the customer when their
// order enters status s.
func StatusMessage(s enum.OrderStatus, orderNumber string) Message {
	switch s {
	case enum.OrderStatusPending:
		return Message{"Order placed", fmt.Sprintf("We received your order %s.", orderNumber)}
	case enum.OrderStatusPaid:
		return Message{"Payment received", fmt.Sprintf("Payment for order %s was received.", orderNumber)}
	case enum.OrderStatusConfirmed:
		return Message{"Order confirmed", fmt.Sprintf("The restaurant accepted order %s.", orderNumber)}
	case enum.OrderStatusPreparing:
		return Message{"Preparing your order", fmt.Sprintf("Order %s is being prepared.", orderNumber)}
	case enum.OrderStatusReady:
		return Message{"Order ready", fmt.Sprintf("Order %s is ready and waiting for a courier.", orderNumber)}
	case enum.OrderStatusOutForDelivery:
		return Message{"On the way", fmt.Sprintf("A courier is bringing order %s to you.", orderNumber)}
	case enum.OrderStatusDelivered:
		return Message{"Delivered", fmt.Sprintf("Order %s was delivered. Enjoy your meal!", orderNumber)}
	case enum.OrderStatusCancelled:
		return Message{"Order cancelled", fmt.Sprintf("Order %s was cancelled.", orderNumber)}
	}
	return Message{"Order update", fmt.Sprintf("Order %s is now %s.", orderNumber, s)}
}

// PaymentFailedMessage tells the customer their card payment did not go through.
func PaymentFailedMessage(orderNumber string) Message {
	return Message{"Payment failed", fmt.Sprintf("Payment for order %s did not go through. Please try again.", orderNumber)}
}

// DeliveryAssignedMessage tells a partner a delivery was reserved for them.
func DeliveryAssignedMessage(orderNumber string) Message {
	return Message{"New delivery", fmt.Sprintf("Order %s was assigned to you. Accept it to start the delivery.", orderNumber)}
}
