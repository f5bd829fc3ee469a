package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/db"
)

// Store is the persistence surface the coupon service needs.
type Store interface {
	GetByCode(ctx context.Context, code string) (Coupon, error)
	ListActive(ctx context.Context, now time.Time) ([]Coupon, error)
	RecordUsage(ctx context.Context, couponID, userID, orderID string, couponDiscount decimal.Decimal) (bool, error)
}

// PGStore reads coupons from PostgreSQL.
type PGStore struct {
	DB db.DBTX
}

const couponColumns = `id::text, code, description, discount_type, discount_value::text,
	max_discount_amount::text, min_order_value::text, start_date, end_date,
	usage_limit, usage_count, is_active`

func scanCoupon(row pgx.Row) (Coupon, error) {
	var (
		c        Coupon
		value    string
		maxDisc  *string
		minOrder string
	)
	if err := row.Scan(&c.ID, &c.Code, &c.Description, &c.DiscountType, &value,
		&maxDisc, &minOrder, &c.StartDate, &c.EndDate, &c.UsageLimit, &c.UsageCount, &c.IsActive); err != nil {
		return Coupon{}, err
	}
	var err error
	if c.DiscountValue, err = decimal.NewFromString(value); err != nil {
		return Coupon{}, fmt.Errorf("coupon %s: discount_value: %w", c.Code, err)
	}
	if c.MinOrderValue, err = decimal.NewFromString(minOrder); err != nil {
		return Coupon{}, fmt.Errorf("coupon %s: min_order_value: %w", c.Code, err)
	}
	if maxDisc != nil {
		m, err := decimal.NewFromString(*maxDisc)
		if err != nil {
			return Coupon{}, fmt.Errorf("coupon %s: max_discount_amount: %w", c.Code, err)
		}
		c.MaxDiscountAmount = &m
	}
	return c, nil
}

// GetByCode looks a coupon up case-insensitively.
func (s PGStore) GetByCode(ctx context.Context, code string) (Coupon, error) {
	c, err := scanCoupon(s.DB.QueryRow(ctx, `SELECT `+couponColumns+` FROM coupons WHERE lower(code) = lower($1)`, code))
	if db.IsNoRows(err) {
		return Coupon{}, ErrNotFound
	}
	return c, err
}

// ListActive returns coupons usable at now, most generous minimum first.
func (s PGStore) ListActive(ctx context.Context, now time.Time) ([]Coupon, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+couponColumns+` FROM coupons
WHERE is_active
  AND (start_date IS NULL OR start_date <= $1)
  AND (end_date IS NULL OR end_date >= $1)
  AND (usage_limit IS NULL OR usage_count < usage_limit)
ORDER BY min_order_value, code`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RecordUsage calls record_coupon_usage, which is a no-op when the order already
// has a usage row. It reports whether a new row was written.
func (s PGStore) RecordUsage(ctx context.Context, couponID, userID, orderID string, couponDiscount decimal.Decimal) (bool, error) {
	var inserted bool
	err := s.DB.QueryRow(ctx, `SELECT record_coupon_usage($1::uuid, $2::uuid, $3::uuid, $4::numeric)`,
		couponID, userID, orderID, couponDiscount.String()).Scan(&inserted)
	return inserted, err
}
