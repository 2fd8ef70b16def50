package customers

import (
	"time"

	"github.com/ybmbakes/bakery-backend/internal/orders"
)

// Customer is the item stored in the customers table, partitioned by its own
// id. total_orders and total_spent are maintained additively by the
// reconciliation service, never recomputed at write time.
type Customer struct {
	CustomerID    string           `dynamodbav:"customer_id" json:"customer_id"` // PK
	Name          string           `dynamodbav:"name" json:"name"`
	Email         string           `dynamodbav:"email" json:"email"` // lowercased, GSI key
	Phone         string           `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
	Addresses     []orders.Address `dynamodbav:"addresses,omitempty" json:"addresses,omitempty"`
	TotalOrders   int64            `dynamodbav:"total_orders" json:"total_orders"`
	TotalSpent    int64            `dynamodbav:"total_spent" json:"total_spent"`
	LastOrderDate time.Time        `dynamodbav:"last_order_date" json:"last_order_date"`
	CreatedAt     time.Time        `dynamodbav:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `dynamodbav:"updated_at" json:"updated_at"`
}

// ApplyOrderInput carries the per-order contribution to a customer record.
type ApplyOrderInput struct {
	CustomerID string
	Name       string
	Email      string
	Phone      string
	OrderTotal int64
	OrderDate  time.Time
	Address    *orders.Address
}
