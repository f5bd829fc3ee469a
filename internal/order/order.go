// Package order persists orders placed through checkout and serves the
// user's order history.
package order

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// Order statuses written by this service. Later transitions belong to the backend.
const (
	StatusPlaced  = "placed"
	StatusPending = "pending"

	PaymentPending = "pending"

	ItemPlaced    = "placed"
	ItemDelivered = "delivered"
)

var (
	// ErrNotFound is returned when an order or item does not belong to the user.
	ErrNotFound = errors.New("order: not found")
	// ErrEmpty is returned when an order has no items.
	ErrEmpty = errors.New("order: no items")
)

// ShippingAddress is the address snapshot stored with the order.
type ShippingAddress struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Line1    string `json:"line1"`
	Line2    string `json:"line2,omitempty"`
	Landmark string `json:"landmark,omitempty"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
}

// New is everything needed to write an order and its items.
type New struct {
	UserID        string
	PaymentMethod pricing.PaymentMethod
	Status        string
	PaymentStatus string
	Address       ShippingAddress
	Bill          pricing.Bill
	CouponCode    string
	Currency      string
	Items         []pricing.LineItem
}

// Order is a persisted order.
type Order struct {
	ID             string                `json:"id"`
	UserID         string                `json:"-"`
	PaymentMethod  pricing.PaymentMethod `json:"payment_method"`
	Status         string                `json:"status"`
	PaymentStatus  string                `json:"payment_status"`
	Address        ShippingAddress       `json:"shipping_address"`
	Bill           pricing.Bill          `json:"bill"`
	CouponCode     string                `json:"coupon_code,omitempty"`
	Currency       string                `json:"currency"`
	GatewayOrderID string                `json:"gateway_order_id,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	Items          []Item                `json:"items,omitempty"`
}

// Item snapshots a line at purchase time.
type Item struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	VariantID   string          `json:"variant_id,omitempty"`
	Name        string          `json:"name"`
	VariantName string          `json:"variant_name,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitMRP     decimal.Decimal `json:"unit_mrp"`
	Quantity    int             `json:"quantity"`
	Status      string          `json:"status"`
	DeliveredAt *time.Time      `json:"delivered_at,omitempty"`
}

// Delivered reports whether the item reached the customer.
func (it Item) Delivered() bool {
	return it.Status == ItemDelivered && it.DeliveredAt != nil
}
