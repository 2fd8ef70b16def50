package customers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ybmbakes/bakery-backend/internal/apperrors"
	"github.com/ybmbakes/bakery-backend/internal/aws/awstest"
	"github.com/ybmbakes/bakery-backend/internal/orders"
)

const testTable = "customers-test"

func newTestStore() (*Store, *awstest.DB) {
	db := awstest.NewDB()
	db.AddTable(testTable, "customer_id", "")
	store := NewStore(db, testTable)
	store.nowFunc = func() time.Time { return time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC) }
	return store, db
}

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"Jess@Example.COM":    "jess@example.com",
		"  jess@example.com ": "jess@example.com",
		"jess@example.com":    "jess@example.com",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateAndDuplicate(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	err := store.Create(ctx, Customer{
		CustomerID: "cust-1",
		Name:       "Jess Tran",
		Email:      "Jess@Example.com",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "cust-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Email != "jess@example.com" {
		t.Errorf("email = %q, want normalized", got.Email)
	}

	err = store.Create(ctx, Customer{CustomerID: "cust-1", Email: "other@example.com"})
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("duplicate Create err = %v, want ErrConflict", err)
	}
}

func TestApplyOrderCreatesCustomer(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	orderDate := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	err := store.ApplyOrder(ctx, ApplyOrderInput{
		CustomerID: "cust-1",
		Name:       "Jess Tran",
		Email:      "Jess@Example.com",
		Phone:      "0400 111 222",
		OrderTotal: 8400,
		OrderDate:  orderDate,
		Address:    &orders.Address{Street: "12 Marsden St", City: "Parramatta", State: "NSW", Postcode: "2000"},
	})
	if err != nil {
		t.Fatalf("apply order: %v", err)
	}

	got, err := store.Get(ctx, "cust-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "jess@example.com" {
		t.Fatalf("expected normalized email, got %s", got.Email)
	}
	if got.TotalOrders != 1 {
		t.Fatalf("expected total_orders 1, got %d", got.TotalOrders)
	}
	if got.TotalSpent != 8400 {
		t.Fatalf("expected total_spent 8400, got %d", got.TotalSpent)
	}
	if len(got.Addresses) != 1 {
		t.Fatalf("expected 1 address, got %d", len(got.Addresses))
	}
}

func TestApplyOrderAccumulates(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	for i, total := range []int64{8400, 4500, 1200} {
		err := store.ApplyOrder(ctx, ApplyOrderInput{
			CustomerID: "cust-1",
			Name:       "Jess Tran",
			Email:      "jess@example.com",
			OrderTotal: total,
			OrderDate:  time.Date(2026, 8, 1+i, 9, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("apply order %d: %v", i, err)
		}
	}

	got, err := store.Get(ctx, "cust-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.TotalOrders != 3 {
		t.Fatalf("expected total_orders 3, got %d", got.TotalOrders)
	}
	if got.TotalSpent != 14100 {
		t.Fatalf("expected total_spent 14100, got %d", got.TotalSpent)
	}
	if !got.LastOrderDate.Equal(time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected last order date to advance, got %v", got.LastOrderDate)
	}
}

func TestGetByEmail(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	err := store.ApplyOrder(ctx, ApplyOrderInput{
		CustomerID: "cust-1",
		Name:       "Jess Tran",
		Email:      "jess@example.com",
		OrderTotal: 4500,
		OrderDate:  time.Now(),
	})
	if err != nil {
		t.Fatalf("apply order: %v", err)
	}

	got, err := store.GetByEmail(ctx, "JESS@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.CustomerID != "cust-1" {
		t.Fatalf("expected cust-1, got %s", got.CustomerID)
	}

	_, err = store.GetByEmail(ctx, "nobody@example.com")
	if !NotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	store, _ := newTestStore()

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
