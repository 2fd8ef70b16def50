package customers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ybmbakes/bakery-backend/internal/apperrors"
	"github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/docshape"
)

// EmailIndex is the GSI used for point lookups by email.
const EmailIndex = "email-index"

// Store encapsulates operations on the customers table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new customers Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// NormalizeEmail is the canonical form used for de-duplication.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create inserts a customer, failing with apperrors.ErrConflict when the id
// is taken. Reconciliation goes through ApplyOrder instead; Create serves
// operator tooling and tests.
func (s *Store) Create(ctx context.Context, c Customer) error {
	now := s.nowFunc()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Email = NormalizeEmail(c.Email)

	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(customer_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return fmt.Errorf("customer %s: %w", c.CustomerID, apperrors.ErrConflict)
		}
		return fmt.Errorf("put customer: %w", err)
	}
	return nil
}

// Get fetches a customer by id.
func (s *Store) Get(ctx context.Context, customerID string) (*Customer, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       s.key(customerID),
	})
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("customer %s: %w", customerID, apperrors.ErrNotFound)
	}
	return unmarshalCustomer(out.Item)
}

// GetByEmail returns the first customer matching the normalized email via
// the email GSI, or apperrors.ErrNotFound.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(EmailIndex),
		KeyConditionExpression: awsString("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: NormalizeEmail(email)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query customer by email: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("customer email %s: %w", email, apperrors.ErrNotFound)
	}
	return unmarshalCustomer(out.Items[0])
}

// List returns all customers, newest first.
func (s *Store) List(ctx context.Context) ([]Customer, error) {
	var items []map[string]types.AttributeValue
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &s.tableName,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan customers: %w", err)
		}
		items = append(items, out.Items...)
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	customers := make([]Customer, 0, len(items))
	for _, item := range items {
		c, err := unmarshalCustomer(item)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *c)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].CreatedAt.After(customers[j].CreatedAt) })
	return customers, nil
}

// ApplyOrder upserts the customer and bumps the running aggregates with an
// atomic ADD. First order creates the record with total_orders=1; later
// orders increment in place. Never a read-modify-write.
func (s *Store) ApplyOrder(ctx context.Context, in ApplyOrderInput) error {
	now := s.nowFunc()
	nowAttr, err := attributevalue.Marshal(now)
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	orderDateAttr, err := attributevalue.Marshal(in.OrderDate)
	if err != nil {
		return fmt.Errorf("marshal order date: %w", err)
	}

	expr := "SET #n = :name, email = :email, phone = :phone, updated_at = :now, last_order_date = :od, created_at = if_not_exists(created_at, :now)"
	values := map[string]types.AttributeValue{
		":name":  &types.AttributeValueMemberS{Value: in.Name},
		":email": &types.AttributeValueMemberS{Value: NormalizeEmail(in.Email)},
		":phone": &types.AttributeValueMemberS{Value: in.Phone},
		":now":   nowAttr,
		":od":    orderDateAttr,
		":one":   &types.AttributeValueMemberN{Value: "1"},
		":spent": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", in.OrderTotal)},
	}
	if in.Address != nil {
		addr, merr := attributevalue.MarshalMap(*in.Address)
		if merr != nil {
			return fmt.Errorf("marshal address: %w", merr)
		}
		expr += ", addresses = list_append(if_not_exists(addresses, :empty), :addr)"
		values[":empty"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{}}
		values[":addr"] = &types.AttributeValueMemberL{Value: []types.AttributeValue{&types.AttributeValueMemberM{Value: addr}}}
	}
	expr += " ADD total_orders :one, total_spent :spent"

	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       s.key(in.CustomerID),
		UpdateExpression:          &expr,
		ExpressionAttributeNames:  map[string]string{"#n": "name"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return fmt.Errorf("apply order to customer: %w", err)
	}
	return nil
}

// Delete hard-deletes a customer. Maintenance tooling only.
func (s *Store) Delete(ctx context.Context, customerID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key:       s.key(customerID),
	})
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

// NotFound reports whether err is the store's not-found condition.
func NotFound(err error) bool {
	return errors.Is(err, apperrors.ErrNotFound)
}

func (s *Store) key(customerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"customer_id": &types.AttributeValueMemberS{Value: customerID},
	}
}

func unmarshalCustomer(item map[string]types.AttributeValue) (*Customer, error) {
	var c Customer
	if err := attributevalue.UnmarshalMap(docshape.Normalize(item), &c); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	return &c, nil
}

func awsString(s string) *string { return &s }
