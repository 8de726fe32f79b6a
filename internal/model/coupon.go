package model

import "time"

// Coupon is a single-use percentage discount scoped to exactly one
// user, stored in the `coupons` table. At most one row exists per
// user: minting a new coupon deletes any prior one. A redeemed
// coupon is deactivated, never deleted, so order history keeps a
// trace of the discount that was applied.
//
// Fields:
//  ID                 – primary key identifier.
//  Code               – coupon code presented at checkout.
//  DiscountPercentage – whole-number percentage off (e.g. 10).
//  ExpirationDate     – instant after which the coupon is invalid.
//  UserID             – owning user; codes from other users never apply.
//  IsActive           – false once redeemed or expired.
type Coupon struct {
	ID                 uint64    `json:"id"`                 // coupons.id
	Code               string    `json:"code"`               // coupons.code
	DiscountPercentage uint8     `json:"discountPercentage"` // coupons.discount_percentage
	ExpirationDate     time.Time `json:"expirationDate"`     // coupons.expiration_date
	UserID             uint64    `json:"userId"`             // coupons.user_id
	IsActive           bool      `json:"isActive"`           // coupons.is_active
	CreatedAt          time.Time `json:"createdAt"`          // coupons.created_at
}

// Expired reports whether the coupon's expiry has passed at t.
func (c Coupon) Expired(t time.Time) bool {
	return c.ExpirationDate.Before(t)
}
