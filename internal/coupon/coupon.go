package coupon

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

var (
	// ErrNotFound is returned when no coupon matches the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned for coupons switched off by the merchant.
	ErrInactive = errors.New("coupon inactive")
	// ErrNotStarted is returned before the validity window opens.
	ErrNotStarted = errors.New("coupon not started")
	// ErrExpired is returned after the validity window closes.
	ErrExpired = errors.New("coupon expired")
	// ErrUsageLimitReached is returned once usage_count has hit usage_limit.
	ErrUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrMinOrderNotMet is returned when the order total is below min_order_value.
	ErrMinOrderNotMet = errors.New("coupon minimum order not met")
)

// Coupon is a merchant discount code.
type Coupon struct {
	ID                string             `json:"id"`
	Code              string             `json:"code"`
	Description       string             `json:"description"`
	DiscountType      pricing.CouponType `json:"discount_type"`
	DiscountValue     decimal.Decimal    `json:"discount_value"`
	MaxDiscountAmount *decimal.Decimal   `json:"max_discount_amount,omitempty"`
	MinOrderValue     decimal.Decimal    `json:"min_order_value"`
	StartDate         *time.Time         `json:"start_date,omitempty"`
	EndDate           *time.Time         `json:"end_date,omitempty"`
	UsageLimit        *int               `json:"usage_limit,omitempty"`
	UsageCount        int                `json:"usage_count"`
	IsActive          bool               `json:"is_active"`
}

// Terms returns the pricing view of the coupon.
func (c Coupon) Terms() pricing.CouponTerms {
	return pricing.CouponTerms{
		Code:          c.Code,
		Type:          c.DiscountType,
		Value:         c.DiscountValue,
		MaxDiscount:   c.MaxDiscountAmount,
		MinOrderValue: c.MinOrderValue,
	}
}

// Check reports why the coupon cannot be applied to orderTotal at now, if at all.
func (c Coupon) Check(now time.Time, orderTotal decimal.Decimal) error {
	if !c.IsActive {
		return ErrInactive
	}
	if c.StartDate != nil && now.Before(*c.StartDate) {
		return ErrNotStarted
	}
	if c.EndDate != nil && now.After(*c.EndDate) {
		return ErrExpired
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return ErrUsageLimitReached
	}
	if orderTotal.LessThan(c.MinOrderValue) {
		return ErrMinOrderNotMet
	}
	return nil
}

// Applied is a coupon that passed validation for a given total.
type Applied struct {
	CouponID    string              `json:"coupon_id"`
	Description string              `json:"description,omitempty"`
	Terms       pricing.CouponTerms `json:"terms"`
}

// StillMeetsMinimum reports whether total still satisfies the coupon's minimum.
func (a Applied) StillMeetsMinimum(total decimal.Decimal) bool {
	return !total.LessThan(a.Terms.MinOrderValue)
}

// NormalizeCode trims and upper-cases user input. Lookups are case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AsAppError maps a validation sentinel to the user-facing error.
func AsAppError(err error, c *Coupon) *common.AppError {
	var appErr *common.AppError
	switch {
	case errors.Is(err, ErrNotFound):
		appErr = reason("COUPON_NOT_FOUND", "this coupon code is not valid", err)
	case errors.Is(err, ErrInactive):
		appErr = reason("COUPON_INACTIVE", "this coupon is no longer active", err)
	case errors.Is(err, ErrNotStarted):
		appErr = reason("COUPON_NOT_STARTED", "this coupon is not active yet", err)
	case errors.Is(err, ErrExpired):
		appErr = reason("COUPON_EXPIRED", "this coupon has expired", err)
	case errors.Is(err, ErrUsageLimitReached):
		appErr = reason("COUPON_USAGE_LIMIT", "this coupon has reached its usage limit", err)
	case errors.Is(err, ErrMinOrderNotMet):
		msg := "order total is below the minimum for this coupon"
		if c != nil {
			msg = "add items worth " + c.MinOrderValue.StringFixed(2) + " or more to use this coupon"
		}
		appErr = reason("COUPON_MIN_ORDER", msg, err)
		if c != nil {
			appErr.WithDetails(map[string]string{"min_order_value": c.MinOrderValue.StringFixed(2)})
		}
	default:
		return common.Upstream(err)
	}
	return appErr
}

func reason(code, msg string, err error) *common.AppError {
	return common.NewAppError(code, msg, http.StatusUnprocessableEntity, err)
}
