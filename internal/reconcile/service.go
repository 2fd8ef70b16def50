// Package reconcile converts completed payment signals into durable order
// and customer state, exactly once per payment intent.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/apperrors"
	"github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/counter"
	"github.com/ybmbakes/bakery-backend/internal/customers"
	"github.com/ybmbakes/bakery-backend/internal/orders"
)

// placeholderEmailDomain synthesizes a customer identity for guest checkouts
// that reach us without an email.
const placeholderEmailDomain = "@guest.ybmbakes.com"

// Service is the order reconciliation service.
type Service struct {
	dynamo    aws.DynamoDBAPI
	records   *RecordStore
	orders    *orders.Store
	customers *customers.Store
	counters  *counter.Store
	publisher *aws.Publisher
	metrics   *aws.Metrics
	logger    *zap.Logger
	nowFunc   func() time.Time
	newID     func() string
}

// NewService wires the reconciliation service. publisher and metrics may be
// nil; both are best-effort side channels.
func NewService(dynamo aws.DynamoDBAPI, records *RecordStore, orderStore *orders.Store, customerStore *customers.Store, counters *counter.Store, publisher *aws.Publisher, metrics *aws.Metrics, logger *zap.Logger) *Service {
	return &Service{
		dynamo:    dynamo,
		records:   records,
		orders:    orderStore,
		customers: customerStore,
		counters:  counters,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// Reconcile persists the order and customer for one completed payment.
// Duplicate deliveries (webhook retry, or the success page racing the
// webhook) converge on the first order created for the payment intent.
func (s *Service) Reconcile(ctx context.Context, in Input) (*Result, error) {
	if in.PaymentIntentID == "" {
		return nil, fmt.Errorf("payment intent id is required: %w", apperrors.ErrValidation)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("at least one line item is required: %w", apperrors.ErrValidation)
	}

	// Fast path: already reconciled. The conditional transact below is the
	// real guarantee; this read just skips the counter bump on retries.
	if rec, err := s.records.Get(ctx, in.PaymentIntentID); err != nil {
		return nil, err
	} else if rec != nil {
		return s.existing(ctx, rec)
	}

	// Only a settled payment mints an order. Anything else means the charge
	// has not happened yet, whatever event claimed otherwise.
	if in.PaymentStatus != orders.PaymentAuthorized && in.PaymentStatus != orders.PaymentPaid {
		return nil, fmt.Errorf("payment intent %s has payment status %q, not settled: %w",
			in.PaymentIntentID, in.PaymentStatus, apperrors.ErrValidation)
	}

	subtotal := int64(0)
	for i, item := range in.Items {
		if item.LineTotal != item.UnitPrice*item.Quantity {
			return nil, fmt.Errorf("line item %d: line total %d != %d x %d: %w",
				i, item.LineTotal, item.UnitPrice, item.Quantity, apperrors.ErrValidation)
		}
		subtotal += item.LineTotal
	}
	total := subtotal + in.DeliveryFee
	if in.AmountTotal != 0 && in.AmountTotal != total {
		// Stripe is authoritative for what was charged; a mismatch means the
		// metadata snapshot drifted. Keep the computed breakdown but flag it.
		s.logger.Warn("gateway amount differs from computed total",
			zap.String("payment_intent_id", in.PaymentIntentID),
			zap.Int64("gateway_amount", in.AmountTotal),
			zap.Int64("computed_total", total))
	}

	custID, err := s.resolveCustomer(ctx, in)
	if err != nil {
		return nil, err
	}

	seq, err := s.counters.Next(ctx, counter.OrderNumberCounter)
	if err != nil {
		return nil, err
	}
	orderNumber := counter.FormatOrderNumber(seq)

	now := s.nowFunc()
	order := orders.Order{
		CustomerID:        custID,
		OrderID:           s.newID(),
		OrderNumber:       orderNumber,
		LineItems:         in.Items,
		Subtotal:          subtotal,
		DeliveryFee:       in.DeliveryFee,
		Total:             total,
		Status:            orders.StatusPending,
		PaymentStatus:     in.PaymentStatus,
		PaymentIntentID:   in.PaymentIntentID,
		CheckoutSessionID: in.CheckoutSessionID,
		DeliveryMethod:    in.DeliveryMethod,
		DeliveryAddress:   in.Address,
		Phone:             in.CustomerPhone,
		StatusHistory: []orders.StatusEntry{
			{Status: orders.StatusPending, Timestamp: now, Note: "Order created"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	recPut, err := s.records.TransactPut(Record{
		PaymentIntentID: in.PaymentIntentID,
		Status:          StatusDone,
		OrderID:         order.OrderID,
		CustomerID:      custID,
		OrderNumber:     orderNumber,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return nil, err
	}
	orderPut, err := s.orders.TransactPut(order)
	if err != nil {
		return nil, err
	}

	_, err = s.dynamo.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: recPut},
			{Put: orderPut},
		},
	})
	if err != nil {
		var tce *types.TransactionCanceledException
		if errors.As(err, &tce) {
			// Lost the race against a concurrent delivery of the same
			// payment intent; the winner's order is the order.
			rec, gerr := s.records.Get(ctx, in.PaymentIntentID)
			if gerr != nil {
				return nil, gerr
			}
			if rec == nil {
				return nil, fmt.Errorf("reconciliation transaction canceled with no record: %w", err)
			}
			return s.existing(ctx, rec)
		}
		s.logger.Error("reconciliation transact write failed",
			zap.String("payment_intent_id", in.PaymentIntentID),
			zap.String("aws_error_code", aws.ErrorCode(err)),
			zap.Error(err))
		return nil, fmt.Errorf("reconciliation transact write: %w", err)
	}

	if err := s.customers.ApplyOrder(ctx, customers.ApplyOrderInput{
		CustomerID: custID,
		Name:       in.CustomerName,
		Email:      s.customerEmail(in, custID),
		Phone:      in.CustomerPhone,
		OrderTotal: total,
		OrderDate:  now,
		Address:    in.Address,
	}); err != nil {
		// The order exists; the aggregate catches up on the next order or a
		// maintenance pass. Do not fail a paid order over it.
		s.logger.Error("customer aggregate update failed",
			zap.String("customer_id", custID),
			zap.String("order_number", orderNumber),
			zap.Error(err))
	}

	s.notify(ctx, &order, in)
	s.count(ctx, aws.MetricOrdersReconciled)

	s.logger.Info("order reconciled",
		zap.String("order_number", orderNumber),
		zap.String("payment_intent_id", in.PaymentIntentID),
		zap.Int64("total", total))

	return &Result{Order: &order}, nil
}

// existing resolves a duplicate delivery to the already-created order.
func (s *Service) existing(ctx context.Context, rec *Record) (*Result, error) {
	order, err := s.orders.Get(ctx, rec.CustomerID, rec.OrderID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// The record row outlived its key pointers (manual repair, partial
		// restore); the payment intent on the order is the fallback.
		order, err = s.orders.GetByPaymentIntent(ctx, rec.PaymentIntentID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch reconciled order %s: %w", rec.OrderNumber, err)
	}
	s.count(ctx, aws.MetricDuplicateDeliveries)
	s.logger.Info("duplicate reconciliation delivery",
		zap.String("order_number", rec.OrderNumber),
		zap.String("payment_intent_id", rec.PaymentIntentID))
	return &Result{Order: order, Duplicate: true}, nil
}

// resolveCustomer finds the customer by normalized email or mints a new id.
func (s *Service) resolveCustomer(ctx context.Context, in Input) (string, error) {
	if in.CustomerEmail == "" {
		return s.newID(), nil
	}
	existing, err := s.customers.GetByEmail(ctx, in.CustomerEmail)
	if err != nil {
		if customers.NotFound(err) {
			return s.newID(), nil
		}
		return "", err
	}
	return existing.CustomerID, nil
}

func (s *Service) customerEmail(in Input, custID string) string {
	if in.CustomerEmail != "" {
		return in.CustomerEmail
	}
	return custID + placeholderEmailDomain
}

// notify enqueues the confirmation email. Best-effort.
func (s *Service) notify(ctx context.Context, order *orders.Order, in Input) {
	if s.publisher == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"order_id":     order.OrderID,
		"order_number": order.OrderNumber,
		"customer_id":  order.CustomerID,
		"email":        in.CustomerEmail,
		"name":         in.CustomerName,
		"total_cents":  order.Total,
	})
	attrs := map[string]string{
		"order_number":      order.OrderNumber,
		"payment_intent_id": order.PaymentIntentID,
	}
	if err := s.publisher.SendConfirmation(ctx, string(payload), attrs); err != nil {
		s.logger.Error("confirmation enqueue failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}
}

func (s *Service) count(ctx context.Context, metric string) {
	if s.metrics == nil {
		return
	}
	if err := s.metrics.Count(ctx, metric, 1); err != nil {
		s.logger.Warn("metric emit failed", zap.String("metric", metric), zap.Error(err))
	}
}
