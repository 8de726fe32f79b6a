package model

import "time"

// CartItem models a row in the `cart_items` table. Cart lines are
// owned exclusively by their user row (ON DELETE CASCADE); they have
// no lifecycle of their own. The (user_id, product_id) pair is
// unique so quantity changes are single atomic statements rather
// than read-modify-write over the whole cart.
type CartItem struct {
	ID        uint64    // cart_items.id
	UserID    uint64    // cart_items.user_id
	ProductID uint64    // cart_items.product_id
	Quantity  uint32    // cart_items.quantity (>= 1)
	CreatedAt time.Time // cart_items.created_at
	UpdatedAt time.Time // cart_items.updated_at
}
