package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/mail"
	"github.com/ybmbakes/bakery-backend/internal/orders"
)

// Processor consumes confirmation messages and sends the order
// confirmation email at most once per order.
type Processor struct {
	orderStore *orders.Store
	mailer     mail.Sender
	logger     *zap.Logger
}

// NewProcessor creates a worker processor.
func NewProcessor(orderStore *orders.Store, mailer mail.Sender, logger *zap.Logger) *Processor {
	return &Processor{
		orderStore: orderStore,
		mailer:     mailer,
		logger:     logger,
	}
}

// Handle processes an SQS batch. A returned error makes the runtime retry
// the batch, so only retryable failures propagate.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			p.logger.Error("worker message failed", zap.String("message_id", rec.MessageId), zap.Error(err))
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg ConfirmationMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		// Malformed messages never become valid; drop instead of retrying.
		p.logger.Error("invalid confirmation message", zap.String("body", rec.Body), zap.Error(err))
		return nil
	}
	if msg.Email == "" {
		p.logger.Info("no customer email, skipping confirmation",
			zap.String("order_number", msg.OrderNumber))
		return nil
	}

	// Claim the send before sending. SQS is at-least-once; the conditional
	// flag makes redeliveries no-ops.
	claimed, err := p.orderStore.MarkConfirmationSent(ctx, msg.CustomerID, msg.OrderID)
	if err != nil {
		return fmt.Errorf("claim confirmation for %s: %w", msg.OrderNumber, err)
	}
	if !claimed {
		p.logger.Info("confirmation already sent",
			zap.String("order_number", msg.OrderNumber))
		return nil
	}

	email := mail.Confirmation(msg.Email, msg.Name, msg.OrderNumber, msg.TotalCents)
	if err := p.mailer.Send(email); err != nil {
		// The claim is spent; a retry would skip anyway. Log and move on.
		p.logger.Error("confirmation email failed",
			zap.String("order_number", msg.OrderNumber),
			zap.String("email", msg.Email),
			zap.Error(err))
		return nil
	}

	p.logger.Info("confirmation email sent",
		zap.String("order_number", msg.OrderNumber),
		zap.String("email", msg.Email))
	return nil
}
