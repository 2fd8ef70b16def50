package awstest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SentMessage records one SQS publish.
type SentMessage struct {
	QueueURL   string
	Body       string
	Attributes map[string]string
}

// SQS is an in-memory fake implementing aws.SQSAPI.
type SQS struct {
	mu       sync.Mutex
	Sent     []SentMessage
	FailNext error
}

func (f *SQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNext != nil {
		err := f.FailNext
		f.FailNext = nil
		return nil, err
	}
	msg := SentMessage{Attributes: map[string]string{}}
	if params.QueueUrl != nil {
		msg.QueueURL = *params.QueueUrl
	}
	if params.MessageBody != nil {
		msg.Body = *params.MessageBody
	}
	for k, v := range params.MessageAttributes {
		if v.StringValue != nil {
			msg.Attributes[k] = *v.StringValue
		}
	}
	f.Sent = append(f.Sent, msg)
	return &sqs.SendMessageOutput{}, nil
}

// Datum records one emitted metric value.
type Datum struct {
	Namespace string
	Name      string
	Value     float64
}

// CloudWatch is an in-memory fake implementing aws.CloudWatchAPI.
type CloudWatch struct {
	mu     sync.Mutex
	Datums []Datum
}

func (f *CloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range params.MetricData {
		datum := Datum{}
		if params.Namespace != nil {
			datum.Namespace = *params.Namespace
		}
		if d.MetricName != nil {
			datum.Name = *d.MetricName
		}
		if d.Value != nil {
			datum.Value = *d.Value
		}
		f.Datums = append(f.Datums, datum)
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}
