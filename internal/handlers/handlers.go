// Package handlers wires the HTTP API: storefront checkout, the payment
// webhook and the admin dashboard.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/admins"
	"github.com/ybmbakes/bakery-backend/internal/apperrors"
	"github.com/ybmbakes/bakery-backend/internal/auth"
	"github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/customers"
	"github.com/ybmbakes/bakery-backend/internal/orders"
	"github.com/ybmbakes/bakery-backend/internal/payments"
	"github.com/ybmbakes/bakery-backend/internal/reconcile"
)

// HandlerConfig groups the dependencies shared by the route groups.
type HandlerConfig struct {
	Gateway    payments.Gateway
	Reconciler *reconcile.Service
	Orders     *orders.Store
	Customers  *customers.Store
	Admins     *admins.Store
	Tokens     *auth.TokenService
	Metrics    *aws.Metrics
	Logger     *zap.Logger

	CookieDomain  string
	SecureCookies bool
}

// RegisterRoutes mounts every route group on the engine.
func RegisterRoutes(r *gin.Engine, cfg HandlerConfig) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	RegisterCheckoutRoutes(r, cfg)
	RegisterWebhookRoutes(r, cfg)
	RegisterAdminRoutes(r, cfg)
}

// writeError maps the sentinel errors onto HTTP statuses. Anything
// unrecognized becomes a 500 without leaking internals.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "msg": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict"})
	case errors.Is(err, apperrors.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.Is(err, apperrors.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable"})
	default:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
