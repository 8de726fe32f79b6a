package model

import "time"

// Order is an immutable record of a completed purchase, created
// only after the payment processor reports the session as paid.
// The processor session id carries a UNIQUE index and acts as the
// idempotency key for confirmation: replaying a confirmation never
// creates a second order.
//
// Order lines reference products by id only; deleting a product
// does not retract historical orders.
type Order struct {
	ID                uint64      `json:"id"`                // orders.id
	UserID            uint64      `json:"userId"`            // orders.user_id
	TotalAmount       float64     `json:"totalAmount"`       // orders.total_amount (major units)
	CheckoutSessionID string      `json:"checkoutSessionId"` // orders.checkout_session_id
	CreatedAt         time.Time   `json:"createdAt"`         // orders.created_at
	Items             []OrderItem `json:"items,omitempty"`
}

// OrderItem is one line of an order with the price captured at
// purchase time, stored in `order_items`.
type OrderItem struct {
	ID        uint64  `json:"id"`        // order_items.id
	OrderID   uint64  `json:"orderId"`   // order_items.order_id
	ProductID uint64  `json:"productId"` // order_items.product_id
	Quantity  uint32  `json:"quantity"`  // order_items.quantity
	Price     float64 `json:"price"`     // order_items.price (major units, at purchase)
}
