package admins

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ybmbakes/bakery-backend/internal/apperrors"
	"github.com/ybmbakes/bakery-backend/internal/aws/awstest"
)

const testTable = "admins-test"

func newTestStore() (*Store, *awstest.DB) {
	db := awstest.NewDB()
	db.AddTable(testTable, "admin_id", "")
	store := NewStore(db, testTable)
	store.nowFunc = func() time.Time { return time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) }
	return store, db
}

func sampleAdmin() Admin {
	return Admin{
		AdminID:      "admin-1",
		Email:        "owner@ybmbakes.com",
		PasswordHash: "$2a$10$fakehash",
		Name:         "Bakery Owner",
		Role:         "owner",
	}
}

func TestCreateAndGetByEmail(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAdmin()); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.GetByEmail(ctx, "Owner@YBMBakes.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.AdminID != "admin-1" {
		t.Fatalf("expected admin-1, got %s", got.AdminID)
	}
}

func TestCreateDuplicateEmailConflicts(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAdmin()); err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := sampleAdmin()
	dup.AdminID = "admin-2"
	err := store.Create(ctx, dup)
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestSetTwoFactorEnrollThenEnable(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAdmin()); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := store.SetTwoFactor(ctx, "admin-1", TwoFactorUpdate{
		Enabled:    false,
		Method:     MethodTOTP,
		TOTPSecret: "SECRET",
	})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}

	got, err := store.Get(ctx, "admin-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TwoFactorEnabled {
		t.Fatal("expected 2fa disabled until a code is proven")
	}
	if got.TOTPSecret != "SECRET" {
		t.Fatalf("expected pending secret, got %q", got.TOTPSecret)
	}

	err = store.SetTwoFactor(ctx, "admin-1", TwoFactorUpdate{
		Enabled:     true,
		Method:      MethodTOTP,
		TOTPSecret:  "SECRET",
		BackupCodes: []string{"aaaa-bbbb", "cccc-dddd"},
	})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}

	got, err = store.Get(ctx, "admin-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.TwoFactorEnabled {
		t.Fatal("expected 2fa enabled")
	}
	if len(got.BackupCodes) != 2 {
		t.Fatalf("expected 2 backup codes, got %d", len(got.BackupCodes))
	}
	if got.BackupCodesVersion != 2 {
		t.Fatalf("expected version 2 after two writes, got %d", got.BackupCodesVersion)
	}
}

func TestSetTwoFactorLostRaceConflicts(t *testing.T) {
	store, db := newTestStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAdmin()); err != nil {
		t.Fatalf("create: %v", err)
	}

	// A concurrent writer bumped the codes-list version between our read
	// and write.
	db.FailNext = &types.ConditionalCheckFailedException{}
	err := store.SetTwoFactor(ctx, "admin-1", TwoFactorUpdate{
		Enabled: true, Method: MethodTOTP, TOTPSecret: "SECRET",
	})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestConsumeBackupCode(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAdmin()); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.SetTwoFactor(ctx, "admin-1", TwoFactorUpdate{
		Enabled:     true,
		Method:      MethodTOTP,
		TOTPSecret:  "SECRET",
		BackupCodes: []string{"aaaa-bbbb", "cccc-dddd"},
	})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}

	used, err := store.ConsumeBackupCode(ctx, "admin-1", "aaaa-bbbb")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !used {
		t.Fatal("expected code to be accepted")
	}

	// Spent codes never match again.
	used, err = store.ConsumeBackupCode(ctx, "admin-1", "aaaa-bbbb")
	if err != nil {
		t.Fatalf("consume again: %v", err)
	}
	if used {
		t.Fatal("expected spent code to be rejected")
	}

	got, err := store.Get(ctx, "admin-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.BackupCodes) != 1 || got.BackupCodes[0] != "cccc-dddd" {
		t.Fatalf("expected only cccc-dddd to remain, got %v", got.BackupCodes)
	}
}

func TestConsumeUnknownBackupCode(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAdmin()); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := store.SetTwoFactor(ctx, "admin-1", TwoFactorUpdate{
		Enabled:     true,
		Method:      MethodTOTP,
		TOTPSecret:  "SECRET",
		BackupCodes: []string{"aaaa-bbbb"},
	})
	if err != nil {
		t.Fatalf("enable: %v", err)
	}

	used, err := store.ConsumeBackupCode(ctx, "admin-1", "zzzz-zzzz")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if used {
		t.Fatal("expected unknown code to be rejected")
	}
}

func TestTouchLastLogin(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	if err := store.Create(ctx, sampleAdmin()); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.TouchLastLogin(ctx, "admin-1"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	got, err := store.Get(ctx, "admin-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LastLoginAt.IsZero() {
		t.Fatal("expected last login to be stamped")
	}
}
