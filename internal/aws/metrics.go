package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names emitted by the reconciliation and webhook paths.
const (
	MetricOrdersReconciled         = "OrdersReconciled"
	MetricDuplicateDeliveries      = "DuplicateDeliveries"
	MetricWebhookSignatureFailures = "WebhookSignatureFailures"
	MetricReconciliationFailures   = "ReconciliationFailures"
)

// Metrics publishes counters to CloudWatch under one namespace.
type Metrics struct {
	CW        CloudWatchAPI
	Namespace string
	nowFunc   func() time.Time
}

// NewMetrics returns a Metrics bound to a namespace, e.g. "YBMBakes/Orders".
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{
		CW:        cw,
		Namespace: namespace,
		nowFunc:   time.Now,
	}
}

// Count emits a count metric. Callers treat failures as best-effort and log
// them; a dropped datapoint must never fail an order.
func (m *Metrics) Count(ctx context.Context, name string, value float64) error {
	now := m.nowFunc()
	input := &cloudwatch.PutMetricDataInput{
		Namespace: &m.Namespace,
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: &name,
				Value:      &value,
				Unit:       cwtypes.StandardUnitCount,
				Timestamp:  &now,
			},
		},
	}
	if _, err := m.CW.PutMetricData(ctx, input); err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}
