// Package queue defines message payloads exchanged over the message broker.
package queue

// OrderConfirmedEvent is published when checkout confirmation creates an
// order. It carries enough information for downstream consumers to log,
// notify, or feed analytics without querying the primary database.
type OrderConfirmedEvent struct {
	OrderID           uint64           `json:"order_id"`
	UserID            uint64           `json:"user_id"`
	CheckoutSessionID string           `json:"checkout_session_id"`
	TotalAmountCents  int64            `json:"total_amount_cents"`
	CouponCode        string           `json:"coupon_code,omitempty"`
	Items             []OrderEventItem `json:"items"`
	ConfirmedAt       string           `json:"confirmed_at"`
}

// OrderEventItem is one purchased line inside the event payload.
type OrderEventItem struct {
	ProductID uint64  `json:"product_id"`
	Quantity  uint32  `json:"quantity"`
	Price     float64 `json:"price"`
}
