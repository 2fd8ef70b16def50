package payments

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ybmbakes/bakery-backend/internal/orders"
)

// Metadata keys attached to sessions and payment intents. The serialized
// line items are the snapshot reconciliation persists; prices are never
// re-read from the live catalog.
const (
	metaLineItems       = "line_items"
	metaDeliveryMethod  = "delivery_method"
	metaDeliveryFee     = "delivery_fee"
	metaPhone           = "phone"
	metaDeliveryAddress = "delivery_address"
)

// OrderMetadata is the delivery/order snapshot carried through the gateway.
type OrderMetadata struct {
	Items          []orders.LineItem
	DeliveryMethod string
	DeliveryFee    int64
	Phone          string
	Address        *orders.Address
}

// EncodeMetadata serializes the snapshot into gateway metadata strings.
func EncodeMetadata(m OrderMetadata) (map[string]string, error) {
	items, err := json.Marshal(m.Items)
	if err != nil {
		return nil, fmt.Errorf("marshal line items: %w", err)
	}
	out := map[string]string{
		metaLineItems:      string(items),
		metaDeliveryMethod: m.DeliveryMethod,
		metaDeliveryFee:    strconv.FormatInt(m.DeliveryFee, 10),
	}
	if m.Phone != "" {
		out[metaPhone] = m.Phone
	}
	if m.Address != nil {
		addr, err := json.Marshal(m.Address)
		if err != nil {
			return nil, fmt.Errorf("marshal delivery address: %w", err)
		}
		out[metaDeliveryAddress] = string(addr)
	}
	return out, nil
}

// DecodeMetadata rebuilds the snapshot from gateway metadata.
func DecodeMetadata(meta map[string]string) (*OrderMetadata, error) {
	raw, ok := meta[metaLineItems]
	if !ok || raw == "" {
		return nil, fmt.Errorf("metadata missing %s", metaLineItems)
	}
	var out OrderMetadata
	if err := json.Unmarshal([]byte(raw), &out.Items); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}
	out.DeliveryMethod = meta[metaDeliveryMethod]
	if out.DeliveryMethod == "" {
		out.DeliveryMethod = orders.DeliveryPickup
	}
	if fee := meta[metaDeliveryFee]; fee != "" {
		parsed, err := strconv.ParseInt(fee, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse delivery fee %q: %w", fee, err)
		}
		out.DeliveryFee = parsed
	}
	out.Phone = meta[metaPhone]
	if addr := meta[metaDeliveryAddress]; addr != "" {
		out.Address = &orders.Address{}
		if err := json.Unmarshal([]byte(addr), out.Address); err != nil {
			return nil, fmt.Errorf("unmarshal delivery address: %w", err)
		}
	}
	return &out, nil
}

// MapIntentStatus maps a gateway intent status onto the order payment
// status. The order field mirrors the gateway, it is never derived
// independently.
func MapIntentStatus(status string) string {
	switch status {
	case "succeeded":
		return orders.PaymentPaid
	case "requires_capture":
		return orders.PaymentAuthorized
	case "canceled":
		return orders.PaymentFailed
	default:
		return orders.PaymentPending
	}
}
