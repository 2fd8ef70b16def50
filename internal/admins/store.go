package admins

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ybmbakes/bakery-backend/internal/apperrors"
	"github.com/ybmbakes/bakery-backend/internal/aws"
	"github.com/ybmbakes/bakery-backend/internal/customers"
	"github.com/ybmbakes/bakery-backend/internal/docshape"
)

// EmailIndex is the GSI used for login lookups.
const EmailIndex = "email-index"

// consumeRetries bounds the optimistic-concurrency loop when consuming a
// backup code.
const consumeRetries = 3

// Store encapsulates operations on the admins table. Admins are created by
// operator tooling, not end-user flows.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new admins Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create inserts an admin. Duplicate email is a hard conflict, unlike
// reconciliation duplicates.
func (s *Store) Create(ctx context.Context, admin Admin) error {
	admin.Email = customers.NormalizeEmail(admin.Email)
	if _, err := s.GetByEmail(ctx, admin.Email); err == nil {
		return fmt.Errorf("admin email %s: %w", admin.Email, apperrors.ErrConflict)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}

	now := s.nowFunc()
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = now
	}
	admin.UpdatedAt = now

	item, err := attributevalue.MarshalMap(admin)
	if err != nil {
		return fmt.Errorf("marshal admin: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(admin_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return fmt.Errorf("admin %s: %w", admin.AdminID, apperrors.ErrConflict)
		}
		return fmt.Errorf("put admin: %w", err)
	}
	return nil
}

// Get fetches an admin by id.
func (s *Store) Get(ctx context.Context, adminID string) (*Admin, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       s.key(adminID),
	})
	if err != nil {
		return nil, fmt.Errorf("get admin: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("admin %s: %w", adminID, apperrors.ErrNotFound)
	}
	return unmarshalAdmin(out.Item)
}

// GetByEmail returns the admin with the given login email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Admin, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              awsString(EmailIndex),
		KeyConditionExpression: awsString("email = :email"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":email": &types.AttributeValueMemberS{Value: customers.NormalizeEmail(email)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("query admin by email: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("admin email %s: %w", email, apperrors.ErrNotFound)
	}
	return unmarshalAdmin(out.Items[0])
}

// SetTwoFactor replaces the admin's second-factor state. Enrollment writes
// the pending secret first (enabled=false) and flips to enabled once a code
// is proven; disabling clears everything.
func (s *Store) SetTwoFactor(ctx context.Context, adminID string, update TwoFactorUpdate) error {
	admin, err := s.Get(ctx, adminID)
	if err != nil {
		return err
	}
	err = s.writeTwoFactor(ctx, adminID, update, admin.BackupCodesVersion)
	var cc *types.ConditionalCheckFailedException
	if errors.As(err, &cc) {
		return fmt.Errorf("two-factor state for admin %s changed concurrently: %w", adminID, apperrors.ErrConflict)
	}
	return err
}

// ConsumeBackupCode removes one backup code after a successful match. The
// write is conditioned on the codes-list version so a code can only ever be
// spent once, even under concurrent logins. Returns false when the code does
// not match any remaining backup code.
func (s *Store) ConsumeBackupCode(ctx context.Context, adminID, code string) (bool, error) {
	for attempt := 0; attempt < consumeRetries; attempt++ {
		admin, err := s.Get(ctx, adminID)
		if err != nil {
			return false, err
		}

		remaining := make([]string, 0, len(admin.BackupCodes))
		matched := false
		for _, c := range admin.BackupCodes {
			if !matched && c == code {
				matched = true
				continue
			}
			remaining = append(remaining, c)
		}
		if !matched {
			return false, nil
		}

		err = s.writeTwoFactor(ctx, adminID, TwoFactorUpdate{
			Enabled:     admin.TwoFactorEnabled,
			Method:      admin.TwoFactorMethod,
			TOTPSecret:  admin.TOTPSecret,
			BackupCodes: remaining,
		}, admin.BackupCodesVersion)
		if err == nil {
			return true, nil
		}
		var cc *types.ConditionalCheckFailedException
		if !errors.As(err, &cc) {
			return false, err
		}
		// Version moved underneath us; re-read and retry.
	}
	return false, fmt.Errorf("consume backup code for admin %s: too many conflicts", adminID)
}

// TouchLastLogin stamps a successful login.
func (s *Store) TouchLastLogin(ctx context.Context, adminID string) error {
	nowAttr, err := attributevalue.Marshal(s.nowFunc())
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	_, err = s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              s.key(adminID),
		UpdateExpression: awsString("SET last_login_at = :now, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": nowAttr,
		},
	})
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// Delete hard-deletes an admin. Operator tooling only.
func (s *Store) Delete(ctx context.Context, adminID string) error {
	_, err := s.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &s.tableName,
		Key:       s.key(adminID),
	})
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	return nil
}

func (s *Store) writeTwoFactor(ctx context.Context, adminID string, update TwoFactorUpdate, currentVersion int64) error {
	nowAttr, err := attributevalue.Marshal(s.nowFunc())
	if err != nil {
		return fmt.Errorf("marshal timestamp: %w", err)
	}
	codes, err := attributevalue.Marshal(update.BackupCodes)
	if err != nil {
		return fmt.Errorf("marshal backup codes: %w", err)
	}

	input := &dyn.UpdateItemInput{
		TableName:        &s.tableName,
		Key:              s.key(adminID),
		UpdateExpression: awsString("SET two_factor_enabled = :en, two_factor_method = :m, totp_secret = :sec, backup_codes = :codes, backup_codes_version = :newv, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":en":    &types.AttributeValueMemberBOOL{Value: update.Enabled},
			":m":     &types.AttributeValueMemberS{Value: update.Method},
			":sec":   &types.AttributeValueMemberS{Value: update.TOTPSecret},
			":codes": codes,
			":newv":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", currentVersion+1)},
			":now":   nowAttr,
		},
	}
	if currentVersion == 0 {
		input.ConditionExpression = awsString("attribute_not_exists(backup_codes_version)")
	} else {
		input.ConditionExpression = awsString("backup_codes_version = :oldv")
		input.ExpressionAttributeValues[":oldv"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", currentVersion)}
	}

	if _, err := s.client.UpdateItem(ctx, input); err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return err
		}
		return fmt.Errorf("write two-factor state: %w", err)
	}
	return nil
}

func (s *Store) key(adminID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"admin_id": &types.AttributeValueMemberS{Value: adminID},
	}
}

func unmarshalAdmin(item map[string]types.AttributeValue) (*Admin, error) {
	var a Admin
	if err := attributevalue.UnmarshalMap(docshape.Normalize(item), &a); err != nil {
		return nil, fmt.Errorf("unmarshal admin: %w", err)
	}
	return &a, nil
}

func awsString(s string) *string { return &s }
