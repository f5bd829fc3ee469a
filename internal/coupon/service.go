package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/obs"
)

// Service validates coupons and records their usage.
type Service struct {
	Store       Store
	Now         func() time.Time
	Validations *prometheus.CounterVec
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Validate checks code against orderTotal (the pre-discount selling total).
func (s *Service) Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (Applied, error) {
	code = NormalizeCode(code)
	if code == "" {
		return Applied{}, common.Validation("coupon code is required")
	}
	c, err := s.Store.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.Inc(s.Validations, "not_found")
			return Applied{}, AsAppError(err, nil)
		}
		return Applied{}, common.Upstream(err)
	}
	if err := c.Check(s.now(), orderTotal); err != nil {
		obs.Inc(s.Validations, resultLabel(err))
		return Applied{}, AsAppError(err, &c)
	}
	obs.Inc(s.Validations, "ok")
	return Applied{CouponID: c.ID, Description: c.Description, Terms: c.Terms()}, nil
}

// RecordUsage stores the coupon discount against the order. Repeating it for
// the same order is harmless.
func (s *Service) RecordUsage(ctx context.Context, applied Applied, userID, orderID string, couponDiscount decimal.Decimal) error {
	if _, err := s.Store.RecordUsage(ctx, applied.CouponID, userID, orderID, couponDiscount); err != nil {
		return err
	}
	return nil
}

// ListAvailable returns coupons currently usable by anyone.
func (s *Service) ListAvailable(ctx context.Context) ([]Coupon, error) {
	list, err := s.Store.ListActive(ctx, s.now())
	if err != nil {
		return nil, common.Upstream(err)
	}
	return list, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrNotStarted):
		return "not_started"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrUsageLimitReached):
		return "usage_limit"
	case errors.Is(err, ErrMinOrderNotMet):
		return "min_order"
	default:
		return "error"
	}
}
