package payments

import (
	"context"
	"encoding/json"

	"github.com/ybmbakes/bakery-backend/internal/orders"
)

// SessionRequest carries everything needed to open a hosted checkout
// session. Line items and delivery parameters are also serialized into the
// session metadata so reconciliation can rebuild the order snapshot.
type SessionRequest struct {
	Items          []orders.LineItem
	CustomerEmail  string
	CustomerName   string
	Phone          string
	DeliveryMethod string
	DeliveryFee    int64
	Address        *orders.Address
	SuccessURL     string
	CancelURL      string
}

// Session is a created hosted checkout session.
type Session struct {
	ID  string
	URL string
}

// Intent mirrors the gateway's payment intent.
type Intent struct {
	ID           string
	Amount       int64
	Status       string // raw gateway status
	ReceiptEmail string
	Metadata     map[string]string
}

// SessionDetails is a retrieved session with its payment intent expanded.
type SessionDetails struct {
	ID            string
	AmountTotal   int64
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Intent        *Intent
	Metadata      map[string]string
}

// Event is a verified webhook event.
type Event struct {
	Type string
	Raw  json.RawMessage
}

// Gateway is the payment provider boundary. The concrete implementation
// talks to Stripe; tests substitute a fake.
type Gateway interface {
	// CreateCheckoutSession opens a hosted session with manual capture: the
	// payment is authorized at checkout and captured later by an operator.
	CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error)
	GetSession(ctx context.Context, id string) (*SessionDetails, error)

	// CreatePaymentIntent is the direct (non-session) flow and captures
	// automatically.
	CreatePaymentIntent(ctx context.Context, amount int64, receiptEmail string, metadata map[string]string) (*Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (*Intent, error)
	CapturePaymentIntent(ctx context.Context, id string) (*Intent, error)
	CancelPaymentIntent(ctx context.Context, id string) (*Intent, error)

	// VerifyWebhook checks the payload signature before anything in it is
	// trusted.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
