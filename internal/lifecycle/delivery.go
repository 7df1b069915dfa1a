package lifecycle

import (
	"errors"
	"fmt"

	"github.com/foodgram/api/internal/enum"
	"github.com/google/uuid"
)

// Errors returned by the delivery state machine and claim guard.
var (
	ErrDeliveryUnavailable   = errors.New("delivery is no longer available")
	ErrNotAssignedPartner    = errors.New("only assigned agents can secure this delivery")
	ErrDemoAccount           = errors.New("demo account cannot accept deliveries")
	ErrInvalidDeliveryStatus = errors.New("invalid delivery status")
)

// deliveryTransitions holds the moves a partner makes by hand after claiming.
// Claiming (pending -> accepted) goes through ClaimGuard, and order-driven
// changes such as cancellation use DeliverySync.
var deliveryTransitions = map[enum.DeliveryStatus][]enum.DeliveryStatus{
	enum.DeliveryStatusAccepted:  {enum.DeliveryStatusPickedUp},
	enum.DeliveryStatusPickedUp:  {enum.DeliveryStatusInTransit, enum.DeliveryStatusDelivered},
	enum.DeliveryStatusInTransit: {enum.DeliveryStatusDelivered},
}

// CanAdvanceDelivery reports whether a delivery may move from current to next.
func CanAdvanceDelivery(current, next enum.DeliveryStatus) bool {
	for _, s := range deliveryTransitions[current] {
		if s == next {
			return true
		}
	}
	return false
}

// ValidateDeliveryTransition checks a partner-driven delivery status change.
func ValidateDeliveryTransition(current, next enum.DeliveryStatus) error {
	if CanAdvanceDelivery(current, next) {
		return nil
	}
	return fmt.Errorf("%w: cannot move delivery from %s to %s", ErrInvalidDeliveryStatus, current, next)
}

// DeliveryRef is the part of a delivery the claim guard looks at.
type DeliveryRef struct {
	Status    enum.DeliveryStatus
	PartnerID uuid.UUID // uuid.Nil while unclaimed
}

// ClaimGuard decides whether a partner may claim a delivery.
type ClaimGuard struct {
	barred uuid.UUID
}

// NewClaimGuard returns a guard that never lets demoAccount claim anything.
// Pass uuid.Nil when no demo account is configured.
func NewClaimGuard(demoAccount uuid.UUID) ClaimGuard {
	return ClaimGuard{barred: demoAccount}
}

// Barred reports whether partnerID is excluded from claiming regardless of status.
func (g ClaimGuard) Barred(partnerID uuid.UUID) bool {
	return g.barred != uuid.Nil && partnerID == g.barred
}

// Check returns nil when partnerID may claim d. The same predicate is
// enforced by the conditional UPDATE in storage; this method is used to
// explain why the UPDATE matched no row.
func (g ClaimGuard) Check(d DeliveryRef, partnerID uuid.UUID) error {
	if g.Barred(partnerID) {
		return ErrDemoAccount
	}
	if d.Status != enum.DeliveryStatusPending {
		return ErrDeliveryUnavailable
	}
	if d.PartnerID != uuid.Nil && d.PartnerID != partnerID {
		return ErrNotAssignedPartner
	}
	return nil
}

// CheckAssignedPartner confirms that partnerID owns the delivery.
func CheckAssignedPartner(d DeliveryRef, partnerID uuid.UUID) error {
	if d.PartnerID == uuid.Nil || d.PartnerID != partnerID {
		return ErrNotAssignedPartner
	}
	return nil
}
