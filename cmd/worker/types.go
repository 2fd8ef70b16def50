package main

// ConfirmationMessage is the payload the API enqueues after an order is
// reconciled.
type ConfirmationMessage struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	CustomerID  string `json:"customer_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	TotalCents  int64  `json:"total_cents"`
}
