// Package lifecycle holds the order and delivery state machines: the transition
// tables, the side effects each transition carries, who may trigger what, and
// the guard that decides whether a partner may claim a delivery.
//
// Nothing here touches storage. The service layer loads rows, asks lifecycle
// for a decision and a plan, and applies the plan inside one transaction.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/foodgram/api/internal/enum"
)

// Errors returned by the order state machine.
var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotCancellable    = errors.New("order cannot be cancelled in its current status")
	ErrForbidden         = errors.New("not allowed to change this order")
)

// orderTransitions defines valid status transitions.
// Key is current status, value is the set of statuses it can transition to.
// Terminal statuses have no entry.
var orderTransitions = map[enum.OrderStatus][]enum.OrderStatus{
	enum.OrderStatusPending:        {enum.OrderStatusPaid, enum.OrderStatusCancelled},
	enum.OrderStatusPaid:           {enum.OrderStatusConfirmed, enum.OrderStatusCancelled},
	enum.OrderStatusConfirmed:      {enum.OrderStatusPreparing, enum.OrderStatusCancelled},
	enum.OrderStatusPreparing:      {enum.OrderStatusReady},
	enum.OrderStatusReady:          {enum.OrderStatusOutForDelivery},
	enum.OrderStatusOutForDelivery: {enum.OrderStatusDelivered, enum.OrderStatusCancelled},
}

// customerCancellable is narrower than the admin table: once the kitchen is
// working on an order the customer can no longer back out, even though an
// admin may still cancel an order that is out for delivery.
var customerCancellable = map[enum.OrderStatus]bool{
	enum.OrderStatusPending:   true,
	enum.OrderStatusPaid:      true,
	enum.OrderStatusConfirmed: true,
}

// AllowedNext returns the statuses an order in status s may move to.
// The returned slice must not be modified.
func AllowedNext(s enum.OrderStatus) []enum.OrderStatus {
	return orderTransitions[s]
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s enum.OrderStatus) bool {
	return len(orderTransitions[s]) == 0
}

// CanTransition reports whether next is in the allowed-next set of current.
func CanTransition(current, next enum.OrderStatus) bool {
	for _, s := range orderTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidateTransition checks if the transition from current to next is allowed.
func ValidateTransition(current, next enum.OrderStatus) error {
	if CanTransition(current, next) {
		return nil
	}
	if IsTerminal(current) {
		return fmt.Errorf("%w: order is already %s", ErrInvalidTransition, current)
	}
	return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidTransition, current, next)
}

// CustomerCanCancel reports whether an order in status s may be cancelled
// through the customer-facing cancel path.
func CustomerCanCancel(s enum.OrderStatus) bool {
	return customerCancellable[s]
}

// ValidateCancel applies the customer-facing cancel precondition.
func ValidateCancel(s enum.OrderStatus) error {
	if CustomerCanCancel(s) {
		return nil
	}
	return fmt.Errorf("%w: order is %s", ErrNotCancellable, s)
}
