package repository

import (
	"context"
	"database/sql"

	"github.com/evermart/storefront-api/internal/model"
)

// CartRepo mutates the caller's cart lines. Every mutation is a
// single statement so two rapid calls from the same user both land;
// there is no read-modify-write over the whole cart.
type CartRepo struct{ DB *sql.DB }

func NewCartRepo(db *sql.DB) *CartRepo { return &CartRepo{DB: db} }

// Add increments the quantity of an existing line by one, or inserts
// a new line with quantity 1. The (user_id, product_id) unique index
// makes the upsert atomic.
func (r *CartRepo) Add(ctx context.Context, userID, productID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity) VALUES (?,?,1)
		 ON DUPLICATE KEY UPDATE quantity = quantity + 1`,
		userID, productID)
	return err
}

// Remove deletes one line from the user's cart. Removing a product
// that is not in the cart is a no-op, matching the storefront's
// remove semantics.
func (r *CartRepo) Remove(ctx context.Context, userID, productID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM cart_items WHERE user_id=? AND product_id=?", userID, productID)
	return err
}

// Clear empties the user's cart.
func (r *CartRepo) Clear(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id=?", userID)
	return err
}

// SetQuantity overwrites the stored quantity of an existing line.
// Quantity 0 removes the line. A product id absent from the cart
// returns ErrNotFound. Callers validate that qty is not negative.
func (r *CartRepo) SetQuantity(ctx context.Context, userID, productID uint64, qty uint32) error {
	if qty == 0 {
		res, err := r.DB.ExecContext(ctx,
			"DELETE FROM cart_items WHERE user_id=? AND product_id=?", userID, productID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE cart_items SET quantity=? WHERE user_id=? AND product_id=?",
		qty, userID, productID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// MySQL reports zero rows for a same-value update too, so
		// distinguish "absent" from "unchanged" before failing.
		var exists int
		err := r.DB.QueryRowContext(ctx,
			"SELECT 1 FROM cart_items WHERE user_id=? AND product_id=? LIMIT 1",
			userID, productID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Items returns the raw cart lines for a user, oldest first.
func (r *CartRepo) Items(ctx context.Context, userID uint64) ([]model.CartItem, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id, user_id, product_id, quantity, created_at, updated_at
		 FROM cart_items WHERE user_id=? ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CartItem, 0)
	for rows.Next() {
		var it model.CartItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity,
			&it.CreatedAt, &it.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Products joins the user's lines against the live catalog. The
// inner join silently drops lines whose product has been deleted,
// which is the desired projection for the cart page.
func (r *CartRepo) Products(ctx context.Context, userID uint64) ([]model.CartProduct, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT p.id, p.name, p.description, p.price, p.image, p.category,
		        p.is_featured, p.created_at, p.updated_at, ci.quantity
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.user_id=? ORDER BY ci.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.CartProduct, 0)
	for rows.Next() {
		var cp model.CartProduct
		if err := rows.Scan(&cp.ID, &cp.Name, &cp.Description, &cp.Price, &cp.Image,
			&cp.Category, &cp.IsFeatured, &cp.CreatedAt, &cp.UpdatedAt, &cp.Quantity); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}
