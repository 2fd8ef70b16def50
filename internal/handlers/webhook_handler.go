package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/payments"
	"github.com/ybmbakes/bakery-backend/internal/reconcile"
)

// Webhook event types we act on. Everything else is acknowledged and
// ignored.
const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventIntentSucceeded   = "payment_intent.succeeded"
)

// RegisterWebhookRoutes registers the payment-gateway webhook endpoint.
//
// Policy: only an invalid signature is rejected. Once the payload is
// authentic the endpoint always answers 200, even when handling fails;
// failures are logged and counted, and the success-page path or a manual
// replay converges the order later. Returning an error here would make the
// gateway retry against a failure that a retry cannot fix.
func RegisterWebhookRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.POST("/api/webhooks/stripe", func(c *gin.Context) {
		ctx := c.Request.Context()

		payload, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}

		event, err := cfg.Gateway.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
		if err != nil {
			cfg.Logger.Warn("webhook signature verification failed", zap.Error(err))
			countMetric(ctx, cfg, aws.MetricWebhookSignatureFailures)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_signature"})
			return
		}

		switch event.Type {
		case eventCheckoutCompleted:
			handleCheckoutCompleted(ctx, cfg, event.Raw)
		case eventIntentSucceeded:
			handleIntentSucceeded(ctx, cfg, event.Raw)
		default:
			cfg.Logger.Debug("webhook event ignored", zap.String("type", event.Type))
		}

		c.JSON(http.StatusOK, gin.H{"received": true})
	})
}

func handleCheckoutCompleted(ctx context.Context, cfg HandlerConfig, raw json.RawMessage) {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.ID == "" {
		cfg.Logger.Error("webhook checkout payload invalid", zap.Error(err))
		countMetric(ctx, cfg, aws.MetricReconciliationFailures)
		return
	}

	// Re-fetch the session rather than trusting the event body: the
	// expanded payment intent and metadata come straight from the gateway.
	details, err := cfg.Gateway.GetSession(ctx, obj.ID)
	if err != nil {
		cfg.Logger.Error("webhook session lookup failed", zap.String("session_id", obj.ID), zap.Error(err))
		countMetric(ctx, cfg, aws.MetricReconciliationFailures)
		return
	}
	if details.Intent == nil {
		cfg.Logger.Warn("webhook session has no payment intent", zap.String("session_id", obj.ID))
		return
	}

	input, err := inputFromSession(details)
	if err != nil {
		cfg.Logger.Error("webhook session metadata invalid", zap.String("session_id", obj.ID), zap.Error(err))
		countMetric(ctx, cfg, aws.MetricReconciliationFailures)
		return
	}
	runReconcile(ctx, cfg, *input)
}

func handleIntentSucceeded(ctx context.Context, cfg HandlerConfig, raw json.RawMessage) {
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.ID == "" {
		cfg.Logger.Error("webhook intent payload invalid", zap.Error(err))
		countMetric(ctx, cfg, aws.MetricReconciliationFailures)
		return
	}

	intent, err := cfg.Gateway.GetPaymentIntent(ctx, obj.ID)
	if err != nil {
		cfg.Logger.Error("webhook intent lookup failed", zap.String("payment_intent_id", obj.ID), zap.Error(err))
		countMetric(ctx, cfg, aws.MetricReconciliationFailures)
		return
	}

	meta, err := payments.DecodeMetadata(intent.Metadata)
	if err != nil {
		// Session-flow intents carry metadata on the session, not the
		// intent; the checkout.session.completed event covers those.
		cfg.Logger.Debug("intent has no order metadata, skipping",
			zap.String("payment_intent_id", obj.ID), zap.Error(err))
		return
	}

	runReconcile(ctx, cfg, reconcile.Input{
		PaymentIntentID: intent.ID,
		AmountTotal:     intent.Amount,
		PaymentStatus:   payments.MapIntentStatus(intent.Status),
		CustomerEmail:   intent.ReceiptEmail,
		CustomerPhone:   meta.Phone,
		Items:           meta.Items,
		DeliveryMethod:  meta.DeliveryMethod,
		DeliveryFee:     meta.DeliveryFee,
		Address:         meta.Address,
	})
}

func runReconcile(ctx context.Context, cfg HandlerConfig, in reconcile.Input) {
	result, err := cfg.Reconciler.Reconcile(ctx, in)
	if err != nil {
		cfg.Logger.Error("webhook reconciliation failed",
			zap.String("payment_intent_id", in.PaymentIntentID), zap.Error(err))
		countMetric(ctx, cfg, aws.MetricReconciliationFailures)
		return
	}
	if result.Duplicate {
		cfg.Logger.Info("webhook delivery was duplicate",
			zap.String("order_number", result.Order.OrderNumber))
	}
}

func countMetric(ctx context.Context, cfg HandlerConfig, metric string) {
	if cfg.Metrics == nil {
		return
	}
	if err := cfg.Metrics.Count(ctx, metric, 1); err != nil {
		cfg.Logger.Warn("metric emit failed", zap.String("metric", metric), zap.Error(err))
	}
}
