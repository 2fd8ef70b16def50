package handlers

import (
	"encoding/base64"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/admins"
	"github.com/ybmbakes/bakery-backend/internal/auth"
	"github.com/ybmbakes/bakery-backend/internal/customers"
	"github.com/ybmbakes/bakery-backend/internal/orders"
	"github.com/ybmbakes/bakery-backend/internal/payments"
)

const (
	topCustomerCount = 5
	recentOrderCount = 10
)

// RegisterAdminRoutes registers the admin auth flow and the dashboard API.
func RegisterAdminRoutes(r *gin.Engine, cfg HandlerConfig) {
	pub := r.Group("/api/admin")
	pub.POST("/login", loginHandler(cfg))
	pub.POST("/verify-2fa", verify2FAHandler(cfg))
	pub.POST("/logout", func(c *gin.Context) {
		clearSessionCookie(c, cfg)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/api/admin", requireAdmin(cfg))
	authed.GET("/me", meHandler(cfg))
	authed.POST("/2fa/setup", setup2FAHandler(cfg))
	authed.POST("/2fa/enable", enable2FAHandler(cfg))
	authed.POST("/2fa/disable", disable2FAHandler(cfg))

	authed.GET("/orders", listOrdersHandler(cfg))
	authed.GET("/orders/:customer_id/:order_id", getOrderHandler(cfg))
	authed.PATCH("/orders/:customer_id/:order_id/status", updateOrderStatusHandler(cfg))
	authed.POST("/orders/:customer_id/:order_id/capture", captureHandler(cfg))
	authed.POST("/orders/:customer_id/:order_id/cancel-payment", cancelPaymentHandler(cfg))

	authed.GET("/customers", listCustomersHandler(cfg))
	authed.GET("/customers/:customer_id", getCustomerHandler(cfg))

	authed.GET("/analytics", analyticsHandler(cfg))
}

func loginHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var req struct {
			Email    string `json:"email" binding:"required"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_credentials"})
			return
		}

		admin, err := cfg.Admins.GetByEmail(ctx, req.Email)
		if err != nil || !auth.CheckPassword(req.Password, admin.PasswordHash) {
			// Same answer for unknown email and wrong password.
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			return
		}

		if admin.TwoFactorEnabled {
			pending, err := cfg.Tokens.Issue(admin.AdminID, admin.Email, rolePending2FA)
			if err != nil {
				writeError(c, cfg.Logger, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"two_factor_required": true,
				"admin_id":            admin.AdminID,
				"method":              admin.TwoFactorMethod,
				"token":               pending,
			})
			return
		}

		finishLogin(c, cfg, admin)
	}
}

func verify2FAHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		var req struct {
			Token string `json:"token" binding:"required"`
			Code  string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_code"})
			return
		}

		sess, err := cfg.Tokens.Validate(req.Token)
		if err != nil || sess.Role != rolePending2FA {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		admin, err := cfg.Admins.Get(ctx, sess.AdminID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		switch admin.TwoFactorMethod {
		case admins.MethodTOTP:
			if !auth.ValidateTOTP(req.Code, admin.TOTPSecret, time.Now()) {
				// A backup code is the fallback when the authenticator is
				// unavailable.
				used, cerr := cfg.Admins.ConsumeBackupCode(ctx, admin.AdminID, req.Code)
				if cerr != nil {
					writeError(c, cfg.Logger, cerr)
					return
				}
				if !used {
					c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_code"})
					return
				}
			}
		case admins.MethodEmail, admins.MethodSMS:
			c.JSON(http.StatusNotImplemented, gin.H{"error": "method_not_supported"})
			return
		default:
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_code"})
			return
		}

		finishLogin(c, cfg, admin)
	}
}

// finishLogin issues the session token, sets the cookie and stamps the
// login.
func finishLogin(c *gin.Context, cfg HandlerConfig, admin *admins.Admin) {
	token, err := cfg.Tokens.Issue(admin.AdminID, admin.Email, admin.Role)
	if err != nil {
		writeError(c, cfg.Logger, err)
		return
	}
	setSessionCookie(c, cfg, token, int(auth.SessionTTL.Seconds()))

	if err := cfg.Admins.TouchLastLogin(c.Request.Context(), admin.AdminID); err != nil {
		cfg.Logger.Warn("last login stamp failed", zap.String("admin_id", admin.AdminID), zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"admin": gin.H{
			"admin_id":           admin.AdminID,
			"email":              admin.Email,
			"name":               admin.Name,
			"role":               admin.Role,
			"two_factor_enabled": admin.TwoFactorEnabled,
		},
	})
}

func meHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFrom(c)
		admin, err := cfg.Admins.Get(c.Request.Context(), sess.AdminID)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"admin": admin})
	}
}

// setup2FAHandler starts TOTP enrollment: a fresh secret is stored disabled
// and only flips on once the admin proves a code from it.
func setup2FAHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sess := sessionFrom(c)

		enrollment, err := auth.NewEnrollment(sess.Email)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		err = cfg.Admins.SetTwoFactor(ctx, sess.AdminID, admins.TwoFactorUpdate{
			Enabled:    false,
			Method:     admins.MethodTOTP,
			TOTPSecret: enrollment.Secret,
		})
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"secret": enrollment.Secret,
			"url":    enrollment.URL,
			"qr_png": base64.StdEncoding.EncodeToString(enrollment.QRPNG),
		})
	}
}

func enable2FAHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sess := sessionFrom(c)

		var req struct {
			Code string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_code"})
			return
		}

		admin, err := cfg.Admins.Get(ctx, sess.AdminID)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		if admin.TOTPSecret == "" {
			c.JSON(http.StatusConflict, gin.H{"error": "not_enrolled"})
			return
		}
		if !auth.ValidateTOTP(req.Code, admin.TOTPSecret, time.Now()) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_code"})
			return
		}

		codes, err := auth.GenerateBackupCodes()
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		err = cfg.Admins.SetTwoFactor(ctx, sess.AdminID, admins.TwoFactorUpdate{
			Enabled:     true,
			Method:      admins.MethodTOTP,
			TOTPSecret:  admin.TOTPSecret,
			BackupCodes: codes,
		})
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		// The only time the backup codes are shown.
		c.JSON(http.StatusOK, gin.H{"backup_codes": codes})
	}
}

func disable2FAHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		sess := sessionFrom(c)

		var req struct {
			Password string `json:"password" binding:"required"`
			Code     string `json:"code" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_credentials"})
			return
		}

		admin, err := cfg.Admins.Get(ctx, sess.AdminID)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		if !auth.CheckPassword(req.Password, admin.PasswordHash) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials"})
			return
		}
		if !admin.TwoFactorEnabled {
			c.JSON(http.StatusConflict, gin.H{"error": "not_enabled"})
			return
		}
		if !auth.ValidateTOTP(req.Code, admin.TOTPSecret, time.Now()) {
			used, cerr := cfg.Admins.ConsumeBackupCode(ctx, admin.AdminID, req.Code)
			if cerr != nil {
				writeError(c, cfg.Logger, cerr)
				return
			}
			if !used {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_code"})
				return
			}
		}

		err = cfg.Admins.SetTwoFactor(ctx, sess.AdminID, admins.TwoFactorUpdate{})
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "disabled"})
	}
}

func listOrdersHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ?number=YBM-07 looks up a single order by its public number.
		if number := c.Query("number"); number != "" {
			order, err := cfg.Orders.GetByOrderNumber(c.Request.Context(), number)
			if err != nil {
				writeError(c, cfg.Logger, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"orders": []interface{}{order}, "count": 1})
			return
		}

		list, err := cfg.Orders.List(c.Request.Context(), c.Query("status"))
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list, "count": len(list)})
	}
}

func getOrderHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		order, err := cfg.Orders.Get(c.Request.Context(), c.Param("customer_id"), c.Param("order_id"))
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

func updateOrderStatusHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Status string `json:"status" binding:"required"`
			Note   string `json:"note"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_status"})
			return
		}

		order, err := cfg.Orders.UpdateStatus(c.Request.Context(),
			c.Param("customer_id"), c.Param("order_id"), req.Status, req.Note)
		if err != nil {
			switch {
			case errors.Is(err, orders.ErrInvalidTransition):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid_transition", "msg": err.Error()})
			case errors.Is(err, orders.ErrStatusMismatch):
				c.JSON(http.StatusConflict, gin.H{"error": "status_conflict"})
			default:
				writeError(c, cfg.Logger, err)
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"order": order})
	}
}

// captureHandler captures the manual-capture authorization once the bakery
// commits to the order.
func captureHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		order, err := cfg.Orders.Get(ctx, c.Param("customer_id"), c.Param("order_id"))
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		if order.PaymentStatus != orders.PaymentAuthorized {
			c.JSON(http.StatusConflict, gin.H{"error": "not_capturable", "payment_status": order.PaymentStatus})
			return
		}

		intent, err := cfg.Gateway.CapturePaymentIntent(ctx, order.PaymentIntentID)
		if err != nil {
			cfg.Logger.Error("capture failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment_gateway_error"})
			return
		}

		status := payments.MapIntentStatus(intent.Status)
		if err := cfg.Orders.UpdatePaymentStatus(ctx, order.CustomerID, order.OrderID, status); err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment_status": status})
	}
}

// cancelPaymentHandler releases an uncaptured authorization.
func cancelPaymentHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		order, err := cfg.Orders.Get(ctx, c.Param("customer_id"), c.Param("order_id"))
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		if order.PaymentStatus != orders.PaymentAuthorized {
			c.JSON(http.StatusConflict, gin.H{"error": "not_cancelable", "payment_status": order.PaymentStatus})
			return
		}

		intent, err := cfg.Gateway.CancelPaymentIntent(ctx, order.PaymentIntentID)
		if err != nil {
			cfg.Logger.Error("payment cancel failed", zap.String("order_number", order.OrderNumber), zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "payment_gateway_error"})
			return
		}

		status := payments.MapIntentStatus(intent.Status)
		if err := cfg.Orders.UpdatePaymentStatus(ctx, order.CustomerID, order.OrderID, status); err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"payment_status": status})
	}
}

func listCustomersHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := cfg.Customers.List(c.Request.Context())
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": list, "count": len(list)})
	}
}

func getCustomerHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		customerID := c.Param("customer_id")

		customer, err := cfg.Customers.Get(ctx, customerID)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		customerOrders, err := cfg.Orders.ListByCustomer(ctx, customerID)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customer": customer, "orders": customerOrders})
	}
}

// analyticsHandler summarizes the dashboard numbers. Revenue sums over
// non-cancelled orders; top customers come from the stored aggregates, not
// a recount.
func analyticsHandler(cfg HandlerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		allOrders, err := cfg.Orders.List(ctx, "")
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}
		allCustomers, err := cfg.Customers.List(ctx)
		if err != nil {
			writeError(c, cfg.Logger, err)
			return
		}

		var revenue int64
		statusCounts := map[string]int{}
		for _, o := range allOrders {
			statusCounts[o.Status]++
			if o.Status != orders.StatusCancelled {
				revenue += o.Total
			}
		}

		top := topCustomers(allCustomers, topCustomerCount)
		recent := allOrders
		if len(recent) > recentOrderCount {
			recent = recent[:recentOrderCount]
		}

		c.JSON(http.StatusOK, gin.H{
			"total_orders":     len(allOrders),
			"total_revenue":    revenue,
			"total_customers":  len(allCustomers),
			"orders_by_status": statusCounts,
			"top_customers":    top,
			"recent_orders":    recent,
		})
	}
}

func topCustomers(list []customers.Customer, n int) []customers.Customer {
	sorted := make([]customers.Customer, len(list))
	copy(sorted, list)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TotalSpent > sorted[j].TotalSpent })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
