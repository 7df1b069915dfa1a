package lifecycle

import (
	"fmt"

	"github.com/foodgram/api/internal/enum"
	"github.com/google/uuid"
)

// Actor is whoever asks for a change: a signed-in user or the system itself.
type Actor struct {
	UserID uuid.UUID
	Role   enum.Role
}

// SystemActor identifies transitions triggered by the server, e.g. payment webhooks.
func SystemActor() Actor {
	return Actor{Role: enum.RoleSystem}
}

// OrderRef is the part of an order that authorization looks at.
type OrderRef struct {
	Status            enum.OrderStatus
	CustomerID        uuid.UUID
	DeliveryPartnerID uuid.UUID // uuid.Nil while unassigned
}

// Decision is the outcome of a capability check.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Err converts a denial into an error wrapping ErrForbidden.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
}

// CanTransitionAs decides whether actor may move order o to next through the
// status-update path. It says nothing about whether the transition itself is
// in the table; callers check that separately with ValidateTransition.
func CanTransitionAs(a Actor, o OrderRef, next enum.OrderStatus) Decision {
	switch a.Role {
	case enum.RoleAdmin:
		return allow()
	case enum.RoleSystem:
		if next == enum.OrderStatusPaid {
			return allow()
		}
		return deny("system may only mark orders as paid")
	case enum.RoleDelivery:
		if next != enum.OrderStatusDelivered {
			return deny("delivery partners may only mark orders as delivered")
		}
		if o.DeliveryPartnerID == uuid.Nil || o.DeliveryPartnerID != a.UserID {
			return deny("order is not assigned to you")
		}
		return allow()
	}
	return deny("admin role required")
}

// CanCancel decides the customer-facing cancel path: only the owning customer
// or an admin.
func CanCancel(a Actor, o OrderRef) Decision {
	if a.Role == enum.RoleAdmin {
		return allow()
	}
	if a.UserID != uuid.Nil && a.UserID == o.CustomerID {
		return allow()
	}
	return deny("only the customer who placed the order can cancel it")
}

// CanView decides read access to an order and its realtime room.
func CanView(a Actor, o OrderRef) Decision {
	switch {
	case a.Role == enum.RoleAdmin:
		return allow()
	case a.UserID != uuid.Nil && a.UserID == o.CustomerID:
		return allow()
	case a.Role == enum.RoleDelivery && a.UserID != uuid.Nil && a.UserID == o.DeliveryPartnerID:
		return allow()
	}
	return deny("order belongs to another user")
}
