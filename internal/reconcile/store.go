package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ybmbakes/bakery-backend/internal/aws"
)

// RecordStore encapsulates the reconciliations table.
type RecordStore struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewRecordStore returns a configured RecordStore.
func NewRecordStore(client aws.DynamoDBAPI, tableName string) *RecordStore {
	return &RecordStore{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Get retrieves a reconciliation record by payment intent id. If not found,
// returns (nil, nil).
func (s *RecordStore) Get(ctx context.Context, paymentIntentID string) (*Record, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"payment_intent_id": &types.AttributeValueMemberS{Value: paymentIntentID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get reconciliation record: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec Record
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal reconciliation record: %w", err)
	}
	return &rec, nil
}

// TransactPut builds the transact Put for a record, guarded by
// attribute_not_exists on the payment intent id.
func (s *RecordStore) TransactPut(rec Record) (*types.Put, error) {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal reconciliation record: %w", err)
	}
	return &types.Put{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(payment_intent_id)"),
	}, nil
}

func awsString(s string) *string { return &s }
