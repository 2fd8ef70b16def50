package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ybmbakes/bakery-backend/internal/apperrors"
	"github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/docshape"
)

// ErrInvalidTransition indicates a status change the state machine forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrStatusMismatch indicates the order's status changed between read and
// write (conditional update failed).
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// Store encapsulates operations on the orders table. Orders are partitioned
// by customer_id with order_id as sort key.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create inserts an order, failing with apperrors.ErrConflict when an order
// with the same key already exists.
func (s *Store) Create(ctx context.Context, order Order) error {
	now := s.nowFunc()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return fmt.Errorf("order %s: %w", order.OrderID, apperrors.ErrConflict)
		}
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// TransactPut builds a transact Put for an order, guarded against
// overwriting an existing one. The reconciliation service pairs it with the
// reconciliation-record Put in a single transaction.
func (s *Store) TransactPut(order Order) (*types.Put, error) {
	now := s.nowFunc()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}
	return &types.Put{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	}, nil
}

// Get fetches an order by partition key and id.
func (s *Store) Get(ctx context.Context, customerID, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       s.key(customerID, orderID),
	})
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("order %s: %w", orderID, apperrors.ErrNotFound)
	}
	return unmarshalOrder(out.Item)
}

// GetByPaymentIntent returns the order bearing a payment intent id, or
// apperrors.ErrNotFound.
func (s *Store) GetByPaymentIntent(ctx context.Context, paymentIntentID string) (*Order, error) {
	items, err := s.scan(ctx, "payment_intent_id = :pi", nil, map[string]types.AttributeValue{
		":pi": &types.AttributeValueMemberS{Value: paymentIntentID},
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("payment intent %s: %w", paymentIntentID, apperrors.ErrNotFound)
	}
	return unmarshalOrder(items[0])
}

// GetByOrderNumber returns the order with a YBM order number, or
// apperrors.ErrNotFound.
func (s *Store) GetByOrderNumber(ctx context.Context, orderNumber string) (*Order, error) {
	items, err := s.scan(ctx, "order_number = :num", nil, map[string]types.AttributeValue{
		":num": &types.AttributeValueMemberS{Value: orderNumber},
	})
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("order number %s: %w", orderNumber, apperrors.ErrNotFound)
	}
	return unmarshalOrder(items[0])
}

// ListByCustomer returns a customer's orders, newest first.
func (s *Store) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: awsString("customer_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": &types.AttributeValueMemberS{Value: customerID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	return unmarshalOrders(out.Items)
}

// List returns all orders, optionally filtered by status, newest first.
func (s *Store) List(ctx context.Context, status string) ([]Order, error) {
	var (
		filter string
		names  map[string]string
		values map[string]types.AttributeValue
	)
	if status != "" {
		filter = "#s = :s"
		names = map[string]string{"#s": "status"}
		values = map[string]types.AttributeValue{
			":s": &types.AttributeValueMemberS{Value: status},
		}
	}
	items, err := s.scan(ctx, filter, names, values)
	if err != nil {
		return nil, err
	}
	return unmarshalOrders(items)
}

// UpdateStatus transitions an order to newStatus, appending one entry to the
// append-only status history. The write is conditional on the status read
// here, so a racing transition surfaces as ErrStatusMismatch.
func (s *Store) UpdateStatus(ctx context.Context, customerID, orderID, newStatus, note string) (*Order, error) {
	current, err := s.Get(ctx, customerID, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, newStatus) {
		return nil, fmt.Errorf("%s -> %s: %w", current.Status, newStatus, ErrInvalidTransition)
	}

	now := s.nowFunc()
	entry, err := attributevalue.MarshalMap(StatusEntry{Status: newStatus, Timestamp: now, Note: note})
	if err != nil {
		return nil, fmt.Errorf("marshal status entry: %w", err)
	}
	nowAttr, err := attributevalue.Marshal(now)
	if err != nil {
		return nil, fmt.Errorf("marshal timestamp: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      s.key(customerID, orderID),
		UpdateExpression:         awsString("SET #s = :new, updated_at = :now, status_history = list_append(if_not_exists(status_history, :empty), :entry)"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":      &types.AttributeValueMemberS{Value: newStatus},
			":expected": &types.AttributeValueMemberS{Value: current.Status},
			":now":      nowAttr,
			":empty":    &types.AttributeValueMemberL{Value: []types.AttributeValue{}},
			":entry":    &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberM{Value: entry}}},
		},
		ConditionExpression: awsString("#s = :expected"),
		ReturnValues:        types.ReturnValueAllNew,
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return unmarshalOrder(out.Attributes)
}

// UpdatePaymentStatus mirrors the gateway's reported payment state.
func (s *Store) UpdatePaymentStatus(ctx context.Context, customerID, orderID, paymentStatus string) error {
	nowAttr, err := attributevalue.Marshal(s.nowFunc())
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              s.key(customerID, orderID),
		UpdateExpression: awsString("SET payment_status = :ps, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ps":  &types.AttributeValueMemberS{Value: paymentStatus},
			":now": nowAttr,
		},
		ConditionExpression: awsString("attribute_exists(order_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return fmt.Errorf("order %s: %w", orderID, apperrors.ErrNotFound)
		}
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// MarkConfirmationSent flags an order's confirmation email as sent exactly
// once. Returns false when another delivery already claimed it.
func (s *Store) MarkConfirmationSent(ctx context.Context, customerID, orderID string) (bool, error) {
	nowAttr, err := attributevalue.Marshal(s.nowFunc())
	if err != nil {
		return false, fmt.Errorf("marshal timestamp: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              s.key(customerID, orderID),
		UpdateExpression: awsString("SET confirmation_sent = :sent, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sent": &types.AttributeValueMemberBOOL{Value: true},
			":now":  nowAttr,
		},
		ConditionExpression: awsString("attribute_not_exists(confirmation_sent)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return false, nil
		}
		return false, fmt.Errorf("mark confirmation sent: %w", err)
	}
	return true, nil
}

// Delete hard-deletes an order. Maintenance tooling only.
func (s *Store) Delete(ctx context.Context, customerID, orderID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key:       s.key(customerID, orderID),
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *Store) key(customerID, orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"customer_id": &types.AttributeValueMemberS{Value: customerID},
		"order_id":    &types.AttributeValueMemberS{Value: orderID},
	}
}

func (s *Store) scan(ctx context.Context, filter string, names map[string]string, values map[string]types.AttributeValue) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		input := &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: startKey,
		}
		if filter != "" {
			input.FilterExpression = &filter
			input.ExpressionAttributeNames = names
			input.ExpressionAttributeValues = values
		}
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return items, nil
}

func unmarshalOrder(item map[string]types.AttributeValue) (*Order, error) {
	var o Order
	if err := attributevalue.UnmarshalMap(docshape.Normalize(item), &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func unmarshalOrders(items []map[string]types.AttributeValue) ([]Order, error) {
	out := make([]Order, 0, len(items))
	for _, item := range items {
		o, err := unmarshalOrder(item)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func awsString(s string) *string { return &s }
