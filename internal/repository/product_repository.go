package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/evermart/storefront-api/internal/model"
)

type ProductRepo struct{ DB *sql.DB }

func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{DB: db} }

const productColumns = "id,name,description,price,image,category,is_featured,created_at,updated_at"

func scanProduct(row interface{ Scan(...any) error }) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Image,
		&p.Category, &p.IsFeatured, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *ProductRepo) collect(rows *sql.Rows) ([]model.Product, error) {
	defer rows.Close()
	out := make([]model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetByID fetches one product.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (model.Product, error) {
	p, err := scanProduct(r.DB.QueryRowContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE id=? LIMIT 1", id))
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	return p, err
}

// ListAll returns every product, newest first.
func (r *ProductRepo) ListAll(ctx context.Context) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ListFeatured returns products flagged as featured.
func (r *ProductRepo) ListFeatured(ctx context.Context) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE is_featured=1 ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ListByCategory returns products with an exact category match.
func (r *ProductRepo) ListByCategory(ctx context.Context, category string) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products WHERE category=? ORDER BY created_at DESC", category)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ListFilter carries the optional shop filters. Zero values mean
// "no filter"; Category "all" is treated the same as empty.
type ListFilter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	Search   string
	Sort     string // price-asc | price-desc | newest | oldest
}

// whereClause renders the filter to a WHERE/ORDER BY suffix and its
// arguments. Split out so the SQL assembly is testable without a
// database.
func (f ListFilter) whereClause() (string, []any) {
	conds := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if f.Category != "" && f.Category != "all" {
		conds = append(conds, "category=?")
		args = append(args, f.Category)
	}
	if f.MinPrice != nil {
		conds = append(conds, "price>=?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		conds = append(conds, "price<=?")
		args = append(args, *f.MaxPrice)
	}
	if f.Search != "" {
		// case-insensitive on the default utf8mb4 _ci collation
		conds = append(conds, "(name LIKE ? OR description LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}

	var sb strings.Builder
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	switch f.Sort {
	case "price-asc":
		sb.WriteString(" ORDER BY price ASC")
	case "price-desc":
		sb.WriteString(" ORDER BY price DESC")
	case "oldest":
		sb.WriteString(" ORDER BY created_at ASC")
	default: // newest
		sb.WriteString(" ORDER BY created_at DESC")
	}
	return sb.String(), args
}

// ListFiltered returns the full filtered set; the shop page is never
// paginated.
func (r *ProductRepo) ListFiltered(ctx context.Context, f ListFilter) ([]model.Product, error) {
	suffix, args := f.whereClause()
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products"+suffix, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// Random returns up to n random products for the recommendations
// strip.
func (r *ProductRepo) Random(ctx context.Context, n int) ([]model.Product, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+productColumns+" FROM products ORDER BY RAND() LIMIT ?", n)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// Create inserts a product and returns it with its assigned id.
func (r *ProductRepo) Create(ctx context.Context, p model.Product) (model.Product, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO products (name, description, price, image, category) VALUES (?,?,?,?,?)",
		p.Name, p.Description, p.Price, p.Image, p.Category)
	if err != nil {
		return model.Product{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Product{}, err
	}
	return r.GetByID(ctx, uint64(id))
}

// Delete removes a product row. Historical orders keep their weak
// reference; cart lines cascade away with the row.
func (r *ProductRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM products WHERE id=?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleFeatured flips is_featured and returns the updated product.
func (r *ProductRepo) ToggleFeatured(ctx context.Context, id uint64) (model.Product, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE products SET is_featured = NOT is_featured WHERE id=?", id)
	if err != nil {
		return model.Product{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Product{}, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// Categories returns the distinct category slugs.
func (r *ProductRepo) Categories(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT DISTINCT category FROM products ORDER BY category")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PriceRange returns the global min and max price. An empty catalog
// yields the 0..1000 defaults the storefront UI expects.
func (r *ProductRepo) PriceRange(ctx context.Context) (min, max float64, err error) {
	var lo, hi sql.NullFloat64
	err = r.DB.QueryRowContext(ctx,
		"SELECT MIN(price), MAX(price) FROM products").Scan(&lo, &hi)
	if err != nil {
		return 0, 0, err
	}
	if !lo.Valid || !hi.Valid {
		return 0, 1000, nil
	}
	return lo.Float64, hi.Float64, nil
}

// Count returns the total number of products.
func (r *ProductRepo) Count(ctx context.Context) (uint64, error) {
	var n uint64
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&n)
	return n, err
}
