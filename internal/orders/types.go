package orders

import "time"

// Order statuses, in lifecycle order.
const (
	StatusPending        = "pending"
	StatusConfirmed      = "confirmed"
	StatusPreparing      = "preparing"
	StatusReady          = "ready"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusCancelled      = "cancelled"
)

// Payment statuses mirror the gateway's intent state; they are never derived
// independently.
const (
	PaymentPending    = "pending"
	PaymentAuthorized = "authorized"
	PaymentPaid       = "paid"
	PaymentFailed     = "failed"
	PaymentRefunded   = "refunded"
)

// Delivery methods.
const (
	DeliveryPickup   = "pickup"
	DeliveryDelivery = "delivery"
)

// transitions is the order status state machine. Cancellation is allowed
// from any non-terminal status.
var transitions = map[string][]string{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReady, StatusCancelled},
	StatusReady:          {StatusOutForDelivery, StatusDelivered, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal status transition.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// LineItem is a snapshot of one purchased item, copied at order creation and
// never recomputed from the live catalog.
type LineItem struct {
	Name      string   `dynamodbav:"name" json:"name"`
	Size      string   `dynamodbav:"size,omitempty" json:"size,omitempty"`
	Addons    []string `dynamodbav:"addons,omitempty" json:"addons,omitempty"`
	Quantity  int64    `dynamodbav:"quantity" json:"quantity"`
	UnitPrice int64    `dynamodbav:"unit_price" json:"unit_price"`
	LineTotal int64    `dynamodbav:"line_total" json:"line_total"`
}

// Address is a delivery address snapshot.
type Address struct {
	Street   string `dynamodbav:"street" json:"street"`
	Line2    string `dynamodbav:"line2,omitempty" json:"line2,omitempty"`
	City     string `dynamodbav:"city" json:"city"`
	State    string `dynamodbav:"state" json:"state"`
	Postcode string `dynamodbav:"postcode" json:"postcode"`
	Country  string `dynamodbav:"country" json:"country"`
}

// StatusEntry is one append-only status history record.
type StatusEntry struct {
	Status    string    `dynamodbav:"status" json:"status"`
	Timestamp time.Time `dynamodbav:"timestamp" json:"timestamp"`
	Note      string    `dynamodbav:"note,omitempty" json:"note,omitempty"`
}

// Order is the item stored in the orders table. The table is partitioned by
// customer_id with order_id as sort key.
type Order struct {
	CustomerID        string        `dynamodbav:"customer_id" json:"customer_id"` // PK
	OrderID           string        `dynamodbav:"order_id" json:"order_id"`       // SK
	OrderNumber       string        `dynamodbav:"order_number" json:"order_number"`
	LineItems         []LineItem    `dynamodbav:"line_items" json:"line_items"`
	Subtotal          int64         `dynamodbav:"subtotal" json:"subtotal"`
	DeliveryFee       int64         `dynamodbav:"delivery_fee" json:"delivery_fee"`
	Total             int64         `dynamodbav:"total" json:"total"`
	Status            string        `dynamodbav:"status" json:"status"`
	PaymentStatus     string        `dynamodbav:"payment_status" json:"payment_status"`
	PaymentIntentID   string        `dynamodbav:"payment_intent_id" json:"payment_intent_id"`
	CheckoutSessionID string        `dynamodbav:"checkout_session_id,omitempty" json:"checkout_session_id,omitempty"`
	DeliveryMethod    string        `dynamodbav:"delivery_method" json:"delivery_method"`
	DeliveryAddress   *Address      `dynamodbav:"delivery_address,omitempty" json:"delivery_address,omitempty"`
	Phone             string        `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	StatusHistory     []StatusEntry `dynamodbav:"status_history" json:"status_history"`
	ConfirmationSent  bool          `dynamodbav:"confirmation_sent,omitempty" json:"confirmation_sent,omitempty"`
	CreatedAt         time.Time     `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `dynamodbav:"updated_at" json:"updated_at"`
}
