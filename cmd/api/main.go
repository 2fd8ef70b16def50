package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/admins"
	awsclients "github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/auth"
	"github.com/ybmbakes/bakery-backend/internal/config"
	"github.com/ybmbakes/bakery-backend/internal/counter"
	"github.com/ybmbakes/bakery-backend/internal/customers"
	"github.com/ybmbakes/bakery-backend/internal/handlers"
	"github.com/ybmbakes/bakery-backend/internal/orders"
	"github.com/ybmbakes/bakery-backend/internal/payments"
	"github.com/ybmbakes/bakery-backend/internal/reconcile"
)

func setupRouter(cfg handlers.HandlerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	handlers.RegisterRoutes(r, cfg)
	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	clients, err := awsclients.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("init aws clients", zap.Error(err))
	}

	gateway, err := payments.NewStripeGateway(
		cfg.Stripe.SecretKey,
		cfg.Stripe.WebhookSecret,
		cfg.Stripe.Currency,
		cfg.Stripe.SuccessURL,
		cfg.Stripe.CancelURL,
	)
	if err != nil {
		logger.Fatal("init payment gateway", zap.Error(err))
	}

	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		logger.Fatal("init token service", zap.Error(err))
	}

	orderStore := orders.NewStore(clients.DynamoDB, cfg.Tables.Orders)
	customerStore := customers.NewStore(clients.DynamoDB, cfg.Tables.Customers)
	adminStore := admins.NewStore(clients.DynamoDB, cfg.Tables.Admins)
	recordStore := reconcile.NewRecordStore(clients.DynamoDB, cfg.Tables.Reconciliations)
	counterStore := counter.NewStore(clients.DynamoDB, cfg.Tables.Counters)
	publisher := awsclients.NewPublisher(clients.SQS, cfg.Queue.ConfirmationQueueURL)
	metrics := awsclients.NewMetrics(clients.CloudWatch, cfg.App.MetricNamespace)

	reconciler := reconcile.NewService(
		clients.DynamoDB,
		recordStore,
		orderStore,
		customerStore,
		counterStore,
		publisher,
		metrics,
		logger,
	)

	r := setupRouter(handlers.HandlerConfig{
		Gateway:       gateway,
		Reconciler:    reconciler,
		Orders:        orderStore,
		Customers:     customerStore,
		Admins:        adminStore,
		Tokens:        tokens,
		Metrics:       metrics,
		Logger:        logger,
		CookieDomain:  cfg.Auth.CookieDomain,
		SecureCookies: cfg.Auth.SecureCookies,
	})

	// RUN_LOCAL=true runs a plain HTTP server for development.
	if os.Getenv("RUN_LOCAL") == "true" {
		logger.Info("running local server", zap.String("addr", cfg.App.HTTPAddr))
		if err := r.Run(cfg.App.HTTPAddr); err != nil {
			logger.Fatal("local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (interface{}, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
