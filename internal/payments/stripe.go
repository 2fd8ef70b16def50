// Package payments wraps the Stripe APIs the storefront depends on: hosted
// checkout sessions, payment intents and webhook signature verification.
package payments

import (
	"context"
	"fmt"

	stripe "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/ybmbakes/bakery-backend/internal/orders"
)

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	api           *client.API
	currency      string
	webhookSecret string
	successURL    string
	cancelURL     string
}

// NewStripeGateway constructs a gateway with its own API client; no global
// key state is used.
func NewStripeGateway(secretKey, webhookSecret, currency, successURL, cancelURL string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:           api,
		currency:      currency,
		webhookSecret: webhookSecret,
		successURL:    successURL,
		cancelURL:     cancelURL,
	}, nil
}

// CreateCheckoutSession opens a manual-capture hosted session. The order
// snapshot travels in the session metadata.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*Session, error) {
	successURL := req.SuccessURL
	if successURL == "" {
		successURL = g.successURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = g.cancelURL
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			CaptureMethod: stripe.String("manual"),
		},
		LineItems: g.lineItems(req),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	meta, err := EncodeMetadata(OrderMetadata{
		Items:          req.Items,
		DeliveryMethod: req.DeliveryMethod,
		DeliveryFee:    req.DeliveryFee,
		Phone:          req.Phone,
		Address:        req.Address,
	})
	if err != nil {
		return nil, err
	}
	for k, v := range meta {
		params.AddMetadata(k, v)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

// GetSession retrieves a session with its payment intent expanded.
func (g *StripeGateway) GetSession(ctx context.Context, id string) (*SessionDetails, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("payment_intent")

	sess, err := g.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}

	details := &SessionDetails{
		ID:          sess.ID,
		AmountTotal: sess.AmountTotal,
		Metadata:    sess.Metadata,
	}
	if sess.CustomerDetails != nil {
		details.CustomerName = sess.CustomerDetails.Name
		details.CustomerEmail = sess.CustomerDetails.Email
		details.CustomerPhone = sess.CustomerDetails.Phone
	}
	if sess.PaymentIntent != nil {
		details.Intent = intentFrom(sess.PaymentIntent)
	}
	return details, nil
}

// CreatePaymentIntent is the direct flow; unlike the session flow it
// captures automatically.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, amount int64, receiptEmail string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(g.currency),
		CaptureMethod: stripe.String("automatic"),
	}
	params.Context = ctx
	if receiptEmail != "" {
		params.ReceiptEmail = stripe.String(receiptEmail)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return intentFrom(pi), nil
}

// GetPaymentIntent retrieves a payment intent by id.
func (g *StripeGateway) GetPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return intentFrom(pi), nil
}

// CapturePaymentIntent captures a previously authorized payment.
func (g *StripeGateway) CapturePaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Capture(id, params)
	if err != nil {
		return nil, fmt.Errorf("capture payment intent: %w", err)
	}
	return intentFrom(pi), nil
}

// CancelPaymentIntent releases an authorization hold.
func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Cancel(id, params)
	if err != nil {
		return nil, fmt.Errorf("cancel payment intent: %w", err)
	}
	return intentFrom(pi), nil
}

// VerifyWebhook checks the Stripe-Signature header against the signing
// secret and returns the verified event.
func (g *StripeGateway) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	return &Event{Type: string(event.Type), Raw: event.Data.Raw}, nil
}

func (g *StripeGateway) lineItems(req SessionRequest) []*stripe.CheckoutSessionLineItemParams {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Items)+1)
	for _, it := range req.Items {
		name := it.Name
		if it.Size != "" {
			name = fmt.Sprintf("%s (%s)", it.Name, it.Size)
		}
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(it.Quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(it.UnitPrice),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(name),
				},
			},
		})
	}
	if req.DeliveryMethod == orders.DeliveryDelivery && req.DeliveryFee > 0 {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(req.DeliveryFee),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Delivery"),
				},
			},
		})
	}
	return items
}

func intentFrom(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		Amount:       pi.Amount,
		Status:       string(pi.Status),
		ReceiptEmail: pi.ReceiptEmail,
		Metadata:     pi.Metadata,
	}
}
