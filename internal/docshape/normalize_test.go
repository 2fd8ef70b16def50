package docshape

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

func TestNormalizeLegacyTopLevel(t *testing.T) {
	item := map[string]types.AttributeValue{
		"orderId":     s("order-1"),
		"orderNumber": s("YBM-07"),
		"total":       n("8400"),
	}

	got := Normalize(item)

	if _, ok := got["orderId"]; ok {
		t.Fatal("legacy key must be removed")
	}
	if av, ok := got["order_id"].(*types.AttributeValueMemberS); !ok || av.Value != "order-1" {
		t.Fatalf("expected order_id=order-1, got %v", got["order_id"])
	}
	if av, ok := got["order_number"].(*types.AttributeValueMemberS); !ok || av.Value != "YBM-07" {
		t.Fatalf("expected order_number=YBM-07, got %v", got["order_number"])
	}
	if _, ok := got["total"]; !ok {
		t.Fatal("canonical keys must pass through untouched")
	}
}

func TestNormalizeCanonicalWins(t *testing.T) {
	item := map[string]types.AttributeValue{
		"order_id": s("canonical"),
		"orderId":  s("legacy"),
	}

	got := Normalize(item)

	av, ok := got["order_id"].(*types.AttributeValueMemberS)
	if !ok || av.Value != "canonical" {
		t.Fatalf("canonical value must win, got %v", got["order_id"])
	}
	if _, ok := got["orderId"]; ok {
		t.Fatal("legacy key must be removed even when canonical exists")
	}
}

func TestNormalizeNestedShapes(t *testing.T) {
	item := map[string]types.AttributeValue{
		"lineItems": &types.AttributeValueMemberL{Value: []types.AttributeValue{
			&types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				"name":      s("Sourdough Loaf"),
				"unitPrice": n("800"),
				"lineTotal": n("2400"),
			}},
		}},
	}

	got := Normalize(item)

	list, ok := got["line_items"].(*types.AttributeValueMemberL)
	if !ok || len(list.Value) != 1 {
		t.Fatalf("expected normalized line_items list, got %v", got["line_items"])
	}
	entry, ok := list.Value[0].(*types.AttributeValueMemberM)
	if !ok {
		t.Fatalf("expected map entry, got %T", list.Value[0])
	}
	if av, ok := entry.Value["unit_price"].(*types.AttributeValueMemberN); !ok || av.Value != "800" {
		t.Fatalf("expected nested unit_price, got %v", entry.Value)
	}
	if _, ok := entry.Value["unitPrice"]; ok {
		t.Fatal("nested legacy key must be removed")
	}
}

func TestNormalizeNil(t *testing.T) {
	if Normalize(nil) != nil {
		t.Fatal("nil input must stay nil")
	}
}
