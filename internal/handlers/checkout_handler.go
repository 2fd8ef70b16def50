package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/orders"
	"github.com/ybmbakes/bakery-backend/internal/payments"
	"github.com/ybmbakes/bakery-backend/internal/reconcile"
	"github.com/ybmbakes/bakery-backend/internal/validation"
	"github.com/ybmbakes/bakery-backend/internal/zones"
)

// RegisterCheckoutRoutes registers the storefront checkout API.
func RegisterCheckoutRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	// Quote the delivery fee for a postcode before checkout.
	r.GET("/api/delivery/quote", func(c *gin.Context) {
		postcode := c.Query("postcode")
		if postcode == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_postcode"})
			return
		}
		fee, ok := zones.Resolve(postcode)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"deliverable": false})
			return
		}
		zone, _ := zones.ZoneName(postcode)
		c.JSON(http.StatusOK, gin.H{
			"deliverable":  true,
			"delivery_fee": fee,
			"zone":         zone,
		})
	})

	r.POST("/api/checkout/session", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		items, addr := orderSnapshot(req)

		sess, err := cfg.Gateway.CreateCheckoutSession(ctx, payments.SessionRequest{
			Items:          items,
			CustomerEmail:  req.Customer.Email,
			CustomerName:   req.Customer.Name,
			Phone:          req.Phone,
			DeliveryMethod: req.DeliveryMethod,
			DeliveryFee:    req.DeliveryFee,
			Address:        addr,
		})
		if err != nil {
			cfg.Logger.Error("checkout session create failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment_gateway_error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"session_id":   sess.ID,
			"checkout_url": sess.URL,
		})
	})

	// Direct payment intent flow for clients embedding the card element
	// instead of the hosted page. The order is created by the
	// payment_intent.succeeded webhook once the charge lands.
	r.POST("/api/checkout/intent", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.CheckoutRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		items, addr := orderSnapshot(req)

		meta, err := payments.EncodeMetadata(payments.OrderMetadata{
			Items:          items,
			DeliveryMethod: req.DeliveryMethod,
			DeliveryFee:    req.DeliveryFee,
			Phone:          req.Phone,
			Address:        addr,
		})
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}

		intent, err := cfg.Gateway.CreatePaymentIntent(ctx, req.Total, req.Customer.Email, meta)
		if err != nil {
			cfg.Logger.Error("payment intent create failed", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment_gateway_error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"payment_intent_id": intent.ID,
			"amount":            intent.Amount,
			"status":            intent.Status,
		})
	})

	// The success page lands here with its session id. This path races the
	// webhook; reconciliation converges both on the same order.
	r.POST("/api/orders/from-session", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req struct {
			SessionID string `json:"session_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_session_id"})
			return
		}

		details, err := cfg.Gateway.GetSession(ctx, req.SessionID)
		if err != nil {
			cfg.Logger.Error("session lookup failed", zap.String("session_id", req.SessionID), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment_gateway_error"})
			return
		}
		if details.Intent == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "payment_not_completed"})
			return
		}
		// The session id is guessable from the success URL; only a settled
		// intent may materialize an order.
		status := payments.MapIntentStatus(details.Intent.Status)
		if status != orders.PaymentAuthorized && status != orders.PaymentPaid {
			c.JSON(http.StatusConflict, gin.H{"error": "payment_not_completed"})
			return
		}

		input, err := inputFromSession(details)
		if err != nil {
			cfg.Logger.Error("session metadata invalid", zap.String("session_id", req.SessionID), zap.Error(err))
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_session_metadata"})
			return
		}

		result, err := cfg.Reconciler.Reconcile(ctx, *input)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"order":     result.Order,
			"duplicate": result.Duplicate,
		})
	})
}

// orderSnapshot converts the validated checkout request into the order
// types persisted through gateway metadata.
func orderSnapshot(req validation.CheckoutRequest) ([]orders.LineItem, *orders.Address) {
	items := make([]orders.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.LineItem{
			Name:      it.Name,
			Size:      it.Size,
			Addons:    it.Addons,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			LineTotal: it.LineTotal,
		})
	}
	var addr *orders.Address
	if req.Address != nil {
		addr = &orders.Address{
			Street:   req.Address.Street,
			Line2:    req.Address.Line2,
			City:     req.Address.City,
			State:    req.Address.State,
			Postcode: req.Address.Postcode,
			Country:  req.Address.Country,
		}
	}
	return items, addr
}

// inputFromSession assembles the reconciliation input from an expanded
// checkout session and its metadata snapshot.
func inputFromSession(details *payments.SessionDetails) (*reconcile.Input, error) {
	meta, err := payments.DecodeMetadata(details.Metadata)
	if err != nil {
		return nil, err
	}
	in := &reconcile.Input{
		PaymentIntentID:   details.Intent.ID,
		CheckoutSessionID: details.ID,
		AmountTotal:       details.AmountTotal,
		PaymentStatus:     payments.MapIntentStatus(details.Intent.Status),
		CustomerName:      details.CustomerName,
		CustomerEmail:     details.CustomerEmail,
		CustomerPhone:     details.CustomerPhone,
		Items:             meta.Items,
		DeliveryMethod:    meta.DeliveryMethod,
		DeliveryFee:       meta.DeliveryFee,
		Address:           meta.Address,
	}
	if in.CustomerPhone == "" {
		in.CustomerPhone = meta.Phone
	}
	return in, nil
}
