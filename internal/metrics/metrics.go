// Package metrics holds the Prometheus collectors of the order and delivery
// flows. They are registered with the default registry on import.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Delivery claim outcomes.
const (
	ClaimWon    = "won"
	ClaimLost   = "lost"
	ClaimBarred = "barred"
)

var (
	// OrdersCreated counts checkouts by payment method.
	OrdersCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders placed",
		},
		[]string{"payment_method"},
	)

	// OrderTransitions counts committed order status changes.
	OrderTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Total number of committed order status transitions",
		},
		[]string{"from", "to"},
	)

	// DeliveryClaims counts accept attempts by outcome.
	DeliveryClaims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_claims_total",
			Help: "Total number of delivery accept attempts by outcome",
		},
		[]string{"outcome"},
	)

	// PaymentEvents counts processed payment webhooks by kind.
	PaymentEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_events_total",
			Help: "Total number of payment webhook events processed",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(OrdersCreated, OrderTransitions, DeliveryClaims, PaymentEvents)
}
