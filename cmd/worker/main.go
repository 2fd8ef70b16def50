package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/config"
	"github.com/ybmbakes/bakery-backend/internal/mail"
	"github.com/ybmbakes/bakery-backend/internal/orders"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := newLogger(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	clients, err := aws.NewAWSClients(context.Background())
	if err != nil {
		logger.Fatal("init aws clients", zap.Error(err))
	}

	processor := NewProcessor(
		orders.NewStore(clients.DynamoDB, cfg.Tables.Orders),
		mail.NewMailer(cfg.SMTP),
		logger,
	)

	// RUN_LOCAL=true feeds one synthetic event instead of starting the
	// Lambda runtime.
	if os.Getenv("RUN_LOCAL") == "true" {
		body := os.Getenv("LOCAL_SQS_BODY")
		if body == "" {
			body = `{"order_id":"local-order-1","order_number":"YBM-01","customer_id":"local-customer-1","email":"test@example.com","name":"Local Test","total_cents":8400}`
		}
		event := events.SQSEvent{Records: []events.SQSMessage{{Body: body}}}
		if err := processor.Handle(context.Background(), event); err != nil {
			logger.Fatal("local handler error", zap.Error(err))
		}
		return
	}

	lambda.Start(processor.Handle)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
