package validation

// CheckoutCustomer identifies the purchaser.
type CheckoutCustomer struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// CheckoutItem is one cart line as submitted by the storefront. Prices are
// cents; the server re-checks every total before opening a session.
type CheckoutItem struct {
	Name      string   `json:"name" validate:"required"`
	Size      string   `json:"size,omitempty"`
	Addons    []string `json:"addons,omitempty"`
	Quantity  int64    `json:"quantity" validate:"required,min=1"`
	UnitPrice int64    `json:"unit_price" validate:"required,gt=0"`
	LineTotal int64    `json:"line_total" validate:"required,gt=0"`
}

// CheckoutAddress is the delivery address for delivery orders.
type CheckoutAddress struct {
	Street   string `json:"street" validate:"required"`
	Line2    string `json:"line2,omitempty"`
	City     string `json:"city" validate:"required"`
	State    string `json:"state" validate:"required"`
	Postcode string `json:"postcode" validate:"required,len=4,numeric"`
	Country  string `json:"country,omitempty"`
}

// CheckoutRequest is the payload for POST /checkout/session.
type CheckoutRequest struct {
	Customer       CheckoutCustomer `json:"customer"`
	Items          []CheckoutItem   `json:"items" validate:"required,min=1,dive"`
	DeliveryMethod string           `json:"delivery_method" validate:"required,oneof=pickup delivery"`
	Address        *CheckoutAddress `json:"address,omitempty"`
	Phone          string           `json:"phone,omitempty"`
	Subtotal       int64            `json:"subtotal" validate:"required,gt=0"`
	DeliveryFee    int64            `json:"delivery_fee" validate:"gte=0"`
	Total          int64            `json:"total" validate:"required,gt=0"`
}
