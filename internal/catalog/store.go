package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// ErrProductNotFound is returned when a product is missing or inactive.
var ErrProductNotFound = errors.New("catalog: product not found")

// Store reads the product listing view and the detail function.
type Store interface {
	ListProducts(ctx context.Context, params ListParams) ([]ProductListItem, int64, error)
	ProductDetail(ctx context.Context, productID string) (ProductDetail, error)
}

// PGStore implements Store against PostgreSQL.
type PGStore struct {
	DB db.DBTX
}

// ListProducts reads one page of product_listing.
func (s PGStore) ListProducts(ctx context.Context, p ListParams) ([]ProductListItem, int64, error) {
	const where = `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR brand ILIKE '%' || $1 || '%')
  AND (NOT $2 OR in_stock)`
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM product_listing `+where, p.Query, p.InStockOnly).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT id::text, name, brand, image_url, price::text, mrp::text, in_stock, is_cod, created_at
FROM product_listing `+where+`
ORDER BY `+p.orderBy()+`
LIMIT $3 OFFSET $4`, p.Query, p.InStockOnly, p.Limit, (p.Page-1)*p.Limit)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()
	var out []ProductListItem
	for rows.Next() {
		var (
			it         ProductListItem
			price, mrp string
			createdAt  time.Time
		)
		if err := rows.Scan(&it.ID, &it.Name, &it.Brand, &it.ImageURL, &price, &mrp, &it.InStock, &it.IsCOD, &createdAt); err != nil {
			return nil, 0, err
		}
		it.Price, _ = decimal.NewFromString(price)
		it.MRP, _ = decimal.NewFromString(mrp)
		out = append(out, it)
	}
	return out, total, rows.Err()
}

// ProductDetail calls get_product_detail, which returns the product as JSON.
func (s PGStore) ProductDetail(ctx context.Context, productID string) (ProductDetail, error) {
	var raw []byte
	if err := s.DB.QueryRow(ctx, `SELECT get_product_detail($1::uuid)`, productID).Scan(&raw); err != nil {
		return ProductDetail{}, fmt.Errorf("catalog: product detail: %w", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ProductDetail{}, ErrProductNotFound
	}
	var detail ProductDetail
	if err := json.Unmarshal(raw, &detail); err != nil {
		return ProductDetail{}, fmt.Errorf("catalog: decode product detail: %w", err)
	}
	return detail, nil
}
