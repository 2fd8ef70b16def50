package reconcile

import (
	"time"

	"github.com/ybmbakes/bakery-backend/internal/orders"
)

// Record statuses.
const (
	StatusDone = "DONE"
)

// Record is the reconciliation row keyed by payment intent id. Its
// conditional create is the uniqueness constraint that makes reconciliation
// idempotent: at most one order ever exists per payment intent.
type Record struct {
	PaymentIntentID string    `dynamodbav:"payment_intent_id"` // PK
	Status          string    `dynamodbav:"status"`
	OrderID         string    `dynamodbav:"order_id"`
	CustomerID      string    `dynamodbav:"customer_id"`
	OrderNumber     string    `dynamodbav:"order_number"`
	CreatedAt       time.Time `dynamodbav:"created_at"`
	UpdatedAt       time.Time `dynamodbav:"updated_at"`
}

// Input is one resolved payment-completion signal, assembled by either the
// success-page session lookup or the webhook handler. Both entry points must
// converge to the same persisted state.
type Input struct {
	PaymentIntentID   string
	CheckoutSessionID string

	// AmountTotal is the gateway-reported total in cents, checked against
	// the recomputed line-item total.
	AmountTotal int64

	// PaymentStatus is the order payment status mapped from the gateway's
	// intent state (orders.PaymentAuthorized, orders.PaymentPaid, ...).
	PaymentStatus string

	CustomerName  string
	CustomerEmail string
	CustomerPhone string

	Items          []orders.LineItem
	DeliveryMethod string
	DeliveryFee    int64
	Address        *orders.Address
}

// Result reports the reconciliation outcome.
type Result struct {
	Order *orders.Order
	// Duplicate is true when the payment intent had already been reconciled
	// and the existing order was returned unchanged.
	Duplicate bool
}
