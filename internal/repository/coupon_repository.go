package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/evermart/storefront-api/internal/model"
)

type CouponRepo struct{ DB *sql.DB }

func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{DB: db} }

const couponColumns = "id,code,discount_percentage,expiration_date,user_id,is_active,created_at"

func scanCoupon(row interface{ Scan(...any) error }) (model.Coupon, error) {
	var c model.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountPercentage, &c.ExpirationDate,
		&c.UserID, &c.IsActive, &c.CreatedAt)
	return c, err
}

// ActiveForUser returns the user's active coupon.
func (r *CouponRepo) ActiveForUser(ctx context.Context, userID uint64) (model.Coupon, error) {
	c, err := scanCoupon(r.DB.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE user_id=? AND is_active=1 LIMIT 1", userID))
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// ActiveByCode resolves a code to the active coupon owned by the
// given user. Codes belonging to other users do not resolve.
func (r *CouponRepo) ActiveByCode(ctx context.Context, code string, userID uint64) (model.Coupon, error) {
	c, err := scanCoupon(r.DB.QueryRowContext(ctx,
		"SELECT "+couponColumns+" FROM coupons WHERE code=? AND user_id=? AND is_active=1 LIMIT 1",
		code, userID))
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	return c, err
}

// Deactivate marks a coupon inactive (redeemed or expired). Rows are
// never deleted on redemption.
func (r *CouponRepo) Deactivate(ctx context.Context, code string, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE coupons SET is_active=0 WHERE code=? AND user_id=?", code, userID)
	return err
}

// Replace mints a new coupon for a user, deleting any prior coupon
// first so the one-coupon-per-user invariant holds. Runs in a
// transaction so a failed insert does not strand the user without
// their old coupon.
func (r *CouponRepo) Replace(ctx context.Context, userID uint64, code string, pct uint8, expires time.Time) (model.Coupon, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return model.Coupon{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM coupons WHERE user_id=?", userID); err != nil {
		return model.Coupon{}, err
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO coupons (code, discount_percentage, expiration_date, user_id, is_active) VALUES (?,?,?,?,1)",
		code, pct, expires, userID)
	if err != nil {
		return model.Coupon{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Coupon{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Coupon{}, err
	}
	return model.Coupon{
		ID:                 uint64(id),
		Code:               code,
		DiscountPercentage: pct,
		ExpirationDate:     expires,
		UserID:             userID,
		IsActive:           true,
	}, nil
}
