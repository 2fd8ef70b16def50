package counter

import (
	"context"
	"testing"

	"github.com/ybmbakes/bakery-backend/internal/aws/awstest"
)

func newTestStore() *Store {
	db := awstest.NewDB()
	db.AddTable("counters-test", "counter_name", "")
	return NewStore(db, "counters-test")
}

func TestNextStartsAtOne(t *testing.T) {
	store := newTestStore()

	n, err := store.Next(context.Background(), OrderNumberCounter)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected first value 1, got %d", n)
	}
}

func TestNextIsMonotonic(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	for want := int64(1); want <= 5; want++ {
		n, err := store.Next(ctx, OrderNumberCounter)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if n != want {
			t.Fatalf("expected %d, got %d", want, n)
		}
	}
}

func TestCountersAreIndependent(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	if _, err := store.Next(ctx, OrderNumberCounter); err != nil {
		t.Fatalf("next: %v", err)
	}
	n, err := store.Next(ctx, "invoice_number")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected independent counter to start at 1, got %d", n)
	}
}

func TestFormatOrderNumber(t *testing.T) {
	cases := map[int64]string{
		1:    "YBM-01",
		9:    "YBM-09",
		10:   "YBM-10",
		42:   "YBM-42",
		100:  "YBM-100",
		1234: "YBM-1234",
	}
	for n, want := range cases {
		if got := FormatOrderNumber(n); got != want {
			t.Errorf("FormatOrderNumber(%d) = %q, want %q", n, got, want)
		}
	}
}
