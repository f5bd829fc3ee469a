package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// Store issues cart commands and reads the cart_view view.
type Store interface {
	Items(ctx context.Context, userID string) ([]Item, error)
	SetLine(ctx context.Context, userID, productID, variantID string, quantity int) error
	SetQuantity(ctx context.Context, userID, cartItemID string, quantity int) error
	Remove(ctx context.Context, userID, cartItemID string) error
	Clear(ctx context.Context, userID string) error
	Count(ctx context.Context, userID string) (int, error)
}

// PGStore implements Store against PostgreSQL.
type PGStore struct {
	DB db.DBTX
}

// Items reads the user's cart, oldest line first.
func (s PGStore) Items(ctx context.Context, userID string) ([]Item, error) {
	rows, err := s.DB.Query(ctx, `SELECT cart_item_id::text, product_id::text, COALESCE(variant_id::text, ''),
	name, variant_name, image_url, unit_price::text, unit_mrp::text, quantity, stock, is_cod,
	COALESCE(weight_kg, 0)::float8, COALESCE(length_cm, 0)::float8, COALESCE(breadth_cm, 0)::float8, COALESCE(height_cm, 0)::float8
FROM cart_view WHERE user_id = $1 ORDER BY created_at, cart_item_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("cart: list items: %w", err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var (
			it         Item
			price, mrp string
		)
		if err := rows.Scan(&it.CartItemID, &it.ProductID, &it.VariantID, &it.Name, &it.VariantName, &it.ImageURL,
			&price, &mrp, &it.Quantity, &it.Stock, &it.IsCOD, &it.WeightKg, &it.LengthCm, &it.BreadthCm, &it.HeightCm); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("cart: unit_price: %w", err)
		}
		if it.UnitMRP, err = decimal.NewFromString(mrp); err != nil {
			return nil, fmt.Errorf("cart: unit_mrp: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SetLine writes the absolute quantity for a product/variant line, creating it if needed.
func (s PGStore) SetLine(ctx context.Context, userID, productID, variantID string, quantity int) error {
	_, err := s.DB.Exec(ctx, `INSERT INTO cart_items (user_id, product_id, variant_id, quantity)
VALUES ($1, $2, NULLIF($3, '')::uuid, $4)
ON CONFLICT (user_id, product_id, COALESCE(variant_id, '00000000-0000-0000-0000-000000000000'::uuid))
DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = now()`, userID, productID, variantID, quantity)
	return err
}

// SetQuantity updates one line owned by the user.
func (s PGStore) SetQuantity(ctx context.Context, userID, cartItemID string, quantity int) error {
	tag, err := s.DB.Exec(ctx, `UPDATE cart_items SET quantity = $3, updated_at = now() WHERE id = $2 AND user_id = $1`, userID, cartItemID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Remove deletes one line owned by the user.
func (s PGStore) Remove(ctx context.Context, userID, cartItemID string) error {
	tag, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE id = $2 AND user_id = $1`, userID, cartItemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// Clear empties the user's cart.
func (s PGStore) Clear(ctx context.Context, userID string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

// Count returns the total quantity in the cart.
func (s PGStore) Count(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.DB.QueryRow(ctx, `SELECT COALESCE(SUM(quantity), 0)::int FROM cart_items WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}
