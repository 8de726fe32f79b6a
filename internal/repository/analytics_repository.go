package repository

import (
	"context"
	"database/sql"
	"time"
)

// AnalyticsRepo issues the read-only aggregate queries behind the
// admin dashboard. Nothing here mutates state.
type AnalyticsRepo struct{ DB *sql.DB }

func NewAnalyticsRepo(db *sql.DB) *AnalyticsRepo { return &AnalyticsRepo{DB: db} }

// OrderTotals is the all-time order aggregate.
type OrderTotals struct {
	Sales   uint64  // number of orders
	Revenue float64 // sum of orders.total_amount
}

// Totals counts orders and sums revenue over all time. COALESCE
// keeps an empty orders table at zero instead of NULL.
func (r *AnalyticsRepo) Totals(ctx context.Context) (OrderTotals, error) {
	var t OrderTotals
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(total_amount),0) FROM orders").
		Scan(&t.Sales, &t.Revenue)
	return t, err
}

// DailyRow is one day's aggregate as produced by the database. Days
// without orders are absent here; the handler zero-fills the range.
type DailyRow struct {
	Date    string // YYYY-MM-DD
	Sales   uint64
	Revenue float64
}

// DailySales groups orders by calendar day inside [start, end].
func (r *AnalyticsRepo) DailySales(ctx context.Context, start, end time.Time) ([]DailyRow, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT DATE_FORMAT(created_at, '%Y-%m-%d') AS day,
		        COUNT(*), COALESCE(SUM(total_amount),0)
		 FROM orders
		 WHERE created_at >= ? AND created_at <= ?
		 GROUP BY day ORDER BY day`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]DailyRow, 0)
	for rows.Next() {
		var d DailyRow
		if err := rows.Scan(&d.Date, &d.Sales, &d.Revenue); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
