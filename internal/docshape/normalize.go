// Package docshape normalizes records written under the old camelCase
// attribute naming into the canonical snake_case shape. Stores call
// Normalize on every item read; all writes use snake_case only.
package docshape

import "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

// legacyAliases maps old camelCase attribute names to their canonical names.
var legacyAliases = map[string]string{
	"orderId":           "order_id",
	"orderNumber":       "order_number",
	"customerId":        "customer_id",
	"lineItems":         "line_items",
	"unitPrice":         "unit_price",
	"lineTotal":         "line_total",
	"deliveryFee":       "delivery_fee",
	"deliveryMethod":    "delivery_method",
	"deliveryAddress":   "delivery_address",
	"paymentStatus":     "payment_status",
	"paymentIntentId":   "payment_intent_id",
	"checkoutSessionId": "checkout_session_id",
	"statusHistory":     "status_history",
	"createdAt":         "created_at",
	"updatedAt":         "updated_at",
	"totalOrders":       "total_orders",
	"totalSpent":        "total_spent",
	"lastOrderDate":     "last_order_date",
	"lastLoginAt":       "last_login_at",
	"passwordHash":      "password_hash",
	"twoFactorEnabled":  "two_factor_enabled",
	"twoFactorMethod":   "two_factor_method",
	"totpSecret":        "totp_secret",
	"backupCodes":       "backup_codes",
}

// Normalize rewrites legacy attribute names in place and returns the map.
// A canonical attribute always wins over its legacy alias when both exist.
func Normalize(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	for legacy, canonical := range legacyAliases {
		v, ok := item[legacy]
		if !ok {
			continue
		}
		if _, exists := item[canonical]; !exists {
			item[canonical] = normalizeValue(v)
		}
		delete(item, legacy)
	}
	for k, v := range item {
		item[k] = normalizeValue(v)
	}
	return item
}

func normalizeValue(av types.AttributeValue) types.AttributeValue {
	switch v := av.(type) {
	case *types.AttributeValueMemberM:
		v.Value = Normalize(v.Value)
		return v
	case *types.AttributeValueMemberL:
		for i, el := range v.Value {
			v.Value[i] = normalizeValue(el)
		}
		return v
	default:
		return av
	}
}
