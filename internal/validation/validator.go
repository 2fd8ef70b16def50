package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/ybmbakes/bakery-backend/internal/orders"
	"github.com/ybmbakes/bakery-backend/internal/zones"
)

// New returns a configured validator with the checkout struct-level
// validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(checkoutStructValidation, CheckoutRequest{})
	return v
}

// checkoutStructValidation enforces the money arithmetic and the delivery
// requirements that cut across fields: every line total must equal
// unit price x quantity, the subtotal must equal the sum of line totals,
// total must equal subtotal plus delivery fee, and delivery orders need a
// deliverable postcode whose zone fee matches the submitted fee.
func checkoutStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CheckoutRequest)

	var sum int64
	for _, it := range req.Items {
		if it.LineTotal != it.UnitPrice*it.Quantity {
			sl.ReportError(it.LineTotal, "line_total", "LineTotal", "line_total_match",
				fmt.Sprintf("%d != %d x %d", it.LineTotal, it.UnitPrice, it.Quantity))
		}
		sum += it.LineTotal
	}
	if sum != req.Subtotal {
		sl.ReportError(req.Subtotal, "subtotal", "Subtotal", "subtotal_match_items",
			fmt.Sprintf("items sum %d != subtotal %d", sum, req.Subtotal))
	}
	if req.Total != req.Subtotal+req.DeliveryFee {
		sl.ReportError(req.Total, "total", "Total", "total_match",
			fmt.Sprintf("total %d != subtotal %d + delivery fee %d", req.Total, req.Subtotal, req.DeliveryFee))
	}

	switch req.DeliveryMethod {
	case orders.DeliveryDelivery:
		if req.Address == nil {
			sl.ReportError(req.Address, "address", "Address", "required_for_delivery", "")
			return
		}
		if req.Phone == "" {
			sl.ReportError(req.Phone, "phone", "Phone", "required_for_delivery", "")
		}
		fee, ok := zones.Resolve(req.Address.Postcode)
		if !ok {
			sl.ReportError(req.Address.Postcode, "address.postcode", "Postcode", "not_deliverable", "")
			return
		}
		if fee != req.DeliveryFee {
			sl.ReportError(req.DeliveryFee, "delivery_fee", "DeliveryFee", "delivery_fee_match_zone",
				fmt.Sprintf("zone fee %d != delivery fee %d", fee, req.DeliveryFee))
		}
	case orders.DeliveryPickup:
		if req.DeliveryFee != 0 {
			sl.ReportError(req.DeliveryFee, "delivery_fee", "DeliveryFee", "pickup_has_no_fee", "")
		}
	}
}
