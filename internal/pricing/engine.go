// Package pricing computes the checkout bill. It is pure: no I/O, no clocks,
// and the same inputs always produce the same Bill.
package pricing

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentMethod is the payment option chosen at checkout. The zero value means
// nothing has been selected yet.
type PaymentMethod string

const (
	MethodCOD    PaymentMethod = "COD"
	MethodOnline PaymentMethod = "ONLINE"
)

// ErrUnknownMethod is returned by ParsePaymentMethod.
var ErrUnknownMethod = errors.New("pricing: unknown payment method")

// ParsePaymentMethod normalises user input into a PaymentMethod.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(strings.ToUpper(strings.TrimSpace(s))) {
	case MethodCOD:
		return MethodCOD, nil
	case MethodOnline:
		return MethodOnline, nil
	default:
		return "", ErrUnknownMethod
	}
}

// LineItem is one product (and optional variant) in a cart or buy-now checkout.
type LineItem struct {
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	Name        string          `json:"name"`
	VariantName string          `json:"variant_name,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitMRP     decimal.Decimal `json:"unit_mrp"`
	Quantity    int             `json:"quantity"`
	Stock       int             `json:"stock"`
	IsCOD       *bool           `json:"is_cod,omitempty"`
	WeightKg    float64         `json:"weight_kg,omitempty"`
	LengthCm    float64         `json:"length_cm,omitempty"`
	BreadthCm   float64         `json:"breadth_cm,omitempty"`
	HeightCm    float64         `json:"height_cm,omitempty"`
}

// InStock reports whether the item can be bought right now.
func (li LineItem) InStock() bool { return li.Stock > 0 }

// CODEligible treats a missing flag as not eligible.
func (li LineItem) CODEligible() bool { return li.IsCOD != nil && *li.IsCOD }

// ClampQuantity keeps q within 1..stock (1..q when stock is unknown or zero).
func ClampQuantity(q, stock int) int {
	if q < 1 {
		q = 1
	}
	if stock > 0 && q > stock {
		q = stock
	}
	return q
}

// CouponType is the discount shape of a coupon.
type CouponType string

const (
	CouponPercentage CouponType = "percentage"
	CouponFixed      CouponType = "fixed"
)

// CouponTerms is the part of a coupon the bill needs.
type CouponTerms struct {
	Code          string           `json:"code"`
	Type          CouponType       `json:"discount_type"`
	Value         decimal.Decimal  `json:"discount_value"`
	MaxDiscount   *decimal.Decimal `json:"max_discount_amount,omitempty"`
	MinOrderValue decimal.Decimal  `json:"min_order_value"`
}

// Discount computes the coupon discount against a pre-discount total, clamped
// to [0, total] and rounded to paise.
func (c CouponTerms) Discount(total decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch c.Type {
	case CouponPercentage:
		d = total.Mul(c.Value).Div(hundred)
		if c.MaxDiscount != nil && d.GreaterThan(*c.MaxDiscount) {
			d = *c.MaxDiscount
		}
	case CouponFixed:
		d = c.Value
	}
	return clamp(d.Round(2), decimal.Zero, total)
}

// Policy holds the fee schedule.
type Policy struct {
	DeliveryFee       decimal.Decimal
	FreeDeliveryAbove decimal.Decimal
	CODFee            decimal.Decimal
}

// DefaultPolicy is the observed production fee schedule.
func DefaultPolicy() Policy {
	return Policy{
		DeliveryFee:       decimal.NewFromInt(40),
		FreeDeliveryAbove: decimal.NewFromInt(500),
		CODFee:            decimal.NewFromInt(50),
	}
}

// Options tweak which items and fees Compute considers.
type Options struct {
	// InStockOnly restricts totals to items with stock > 0 (checkout screen).
	InStockOnly bool
	// WaiveDelivery forces the delivery fee to zero (cart-only view).
	WaiveDelivery bool
}

// Bill is the derived order summary.
type Bill struct {
	ItemCount      int             `json:"item_count"`
	TotalMRP       decimal.Decimal `json:"total_mrp"`
	TotalSelling   decimal.Decimal `json:"total_selling"`
	ItemDiscount   decimal.Decimal `json:"item_discount"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	CODFee         decimal.Decimal `json:"cod_fee"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
}

var hundred = decimal.NewFromInt(100)

// Compute calculates the bill for items under the selected method and coupon.
func Compute(items []LineItem, method PaymentMethod, coupon *CouponTerms, policy Policy, opts Options) Bill {
	var b Bill
	for _, it := range items {
		if it.Quantity <= 0 || (opts.InStockOnly && !it.InStock()) {
			continue
		}
		qty := decimal.NewFromInt(int64(it.Quantity))
		b.ItemCount += it.Quantity
		b.TotalMRP = b.TotalMRP.Add(it.UnitMRP.Mul(qty))
		b.TotalSelling = b.TotalSelling.Add(it.UnitPrice.Mul(qty))
	}
	b.ItemDiscount = b.TotalMRP.Sub(b.TotalSelling)

	if coupon != nil {
		b.CouponDiscount = coupon.Discount(b.TotalSelling)
	}

	afterCoupon := b.TotalSelling.Sub(b.CouponDiscount)
	if !opts.WaiveDelivery && !afterCoupon.GreaterThan(policy.FreeDeliveryAbove) {
		b.DeliveryFee = policy.DeliveryFee
	}
	if method == MethodCOD {
		b.CODFee = policy.CODFee
	}
	b.FinalAmount = afterCoupon.Add(b.DeliveryFee).Add(b.CODFee)
	return b
}

// ToMinorUnits converts an amount to integer paise, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
