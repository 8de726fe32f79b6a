package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/evermart/storefront-api/internal/model"
)

type OrderRepo struct{ DB *sql.DB }

func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{DB: db} }

// GetBySessionID looks an order up by its payment-processor session
// id. Confirmation uses this as the idempotency probe before
// creating anything.
func (r *OrderRepo) GetBySessionID(ctx context.Context, sessionID string) (model.Order, error) {
	var o model.Order
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, user_id, total_amount, checkout_session_id, created_at
		 FROM orders WHERE checkout_session_id=? LIMIT 1`, sessionID).
		Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.CheckoutSessionID, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

// Create inserts an order and its lines in one transaction. The
// UNIQUE index on checkout_session_id turns a confirmation replay
// that races past the lookup into a duplicate-key error, surfaced
// as ErrNotFound-free ErrDuplicateSession handling at the caller via
// the sentinel below.
func (r *OrderRepo) Create(ctx context.Context, o model.Order) (uint64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO orders (user_id, total_amount, checkout_session_id) VALUES (?,?,?)",
		o.UserID, o.TotalAmount, o.CheckoutSessionID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrDuplicateSession
		}
		return 0, err
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, it := range o.Items {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO order_items (order_id, product_id, quantity, price) VALUES (?,?,?,?)",
			orderID, it.ProductID, it.Quantity, it.Price); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return uint64(orderID), nil
}
