// Package counter implements atomic monotonic counters on a DynamoDB table.
// The order-number sequence lives here; allocation is a single server-side
// increment, never a scan-max.
package counter

import (
	"context"
	"fmt"
	"strconv"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ybmbakes/bakery-backend/internal/aws"
)

// OrderNumberCounter is the counter backing the YBM-<N> sequence.
const OrderNumberCounter = "order_number"

// Store wraps the counters table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

// NewStore returns a Store bound to the counters table.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Next atomically increments a named counter and returns the new value. The
// first call on a fresh counter returns 1.
func (s *Store) Next(ctx context.Context, name string) (int64, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"counter_name": &types.AttributeValueMemberS{Value: name},
		},
		UpdateExpression: awsString("SET current_value = if_not_exists(current_value, :zero) + :inc"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":inc":  &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("increment counter %s: %w", name, err)
	}
	attr, ok := out.Attributes["current_value"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("counter %s: unexpected attribute %T", name, out.Attributes["current_value"])
	}
	value, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s: parse value: %w", name, err)
	}
	return value, nil
}

// FormatOrderNumber renders an order number as YBM-<N>, zero-padded to at
// least two digits.
func FormatOrderNumber(n int64) string {
	return fmt.Sprintf("YBM-%02d", n)
}

func awsString(s string) *string { return &s }
