package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/db"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// Store persists orders.
type Store interface {
	Create(ctx context.Context, o New) (Order, error)
	AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error
	List(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error)
	Get(ctx context.Context, userID, id string) (Order, error)
	Item(ctx context.Context, userID, itemID string) (Item, error)
}

// PGStore implements Store on the orders and order_items tables.
type PGStore struct {
	DB    db.DBTX
	Begin db.TxBeginner
}

// Create writes the order and its items in one transaction.
func (s PGStore) Create(ctx context.Context, o New) (Order, error) {
	addr, err := json.Marshal(o.Address)
	if err != nil {
		return Order{}, fmt.Errorf("order: encode address: %w", err)
	}
	out := Order{
		UserID: o.UserID, PaymentMethod: o.PaymentMethod, Status: o.Status, PaymentStatus: o.PaymentStatus,
		Address: o.Address, Bill: o.Bill, CouponCode: o.CouponCode, Currency: o.Currency,
	}
	b := o.Bill
	err = db.InTx(ctx, s.Begin, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `INSERT INTO orders
  (user_id, payment_method, status, payment_status, shipping_address, item_count,
   total_mrp, total_selling, item_discount, coupon_code, coupon_discount,
   delivery_fee, cod_fee, final_amount, currency)
VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10, $11::numeric,
        $12::numeric, $13::numeric, $14::numeric, $15)
RETURNING id::text, created_at`,
			o.UserID, string(o.PaymentMethod), o.Status, o.PaymentStatus, addr, b.ItemCount,
			b.TotalMRP.String(), b.TotalSelling.String(), b.ItemDiscount.String(), o.CouponCode, b.CouponDiscount.String(),
			b.DeliveryFee.String(), b.CODFee.String(), b.FinalAmount.String(), o.Currency,
		).Scan(&out.ID, &out.CreatedAt); err != nil {
			return fmt.Errorf("order: insert: %w", err)
		}

		batch := &pgx.Batch{}
		for _, li := range o.Items {
			batch.Queue(`INSERT INTO order_items
  (order_id, product_id, variant_id, name, variant_name, image_url, unit_price, unit_mrp, quantity, status)
VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7::numeric, $8::numeric, $9, $10)
RETURNING id::text`,
				out.ID, li.ProductID, li.VariantID, li.Name, li.VariantName, li.ImageURL,
				li.UnitPrice.String(), li.UnitMRP.String(), li.Quantity, ItemPlaced)
		}
		results := tx.SendBatch(ctx, batch)
		for _, li := range o.Items {
			it := itemFromLine(out.ID, li)
			if err := results.QueryRow().Scan(&it.ID); err != nil {
				_ = results.Close()
				return fmt.Errorf("order: insert item: %w", err)
			}
			out.Items = append(out.Items, it)
		}
		return results.Close()
	})
	if err != nil {
		return Order{}, err
	}
	return out, nil
}

func itemFromLine(orderID string, li pricing.LineItem) Item {
	return Item{
		OrderID: orderID, ProductID: li.ProductID, VariantID: li.VariantID, Name: li.Name,
		VariantName: li.VariantName, ImageURL: li.ImageURL, UnitPrice: li.UnitPrice, UnitMRP: li.UnitMRP,
		Quantity: li.Quantity, Status: ItemPlaced,
	}
}

// AttachGatewayOrder records the gateway order id on a pending order.
func (s PGStore) AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	tag, err := s.DB.Exec(ctx, `UPDATE orders SET gateway_order_id = $2, updated_at = now() WHERE id = $1`, orderID, gatewayOrderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const orderColumns = `id::text, user_id::text, payment_method, status, payment_status, shipping_address,
	item_count, total_mrp::text, total_selling::text, item_discount::text, coupon_code, coupon_discount::text,
	delivery_fee::text, cod_fee::text, final_amount::text, currency, gateway_order_id, created_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		method string
		addr   []byte
		money  [7]string
	)
	if err := row.Scan(&o.ID, &o.UserID, &method, &o.Status, &o.PaymentStatus, &addr,
		&o.Bill.ItemCount, &money[0], &money[1], &money[2], &o.CouponCode, &money[3],
		&money[4], &money[5], &money[6], &o.Currency, &o.GatewayOrderID, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	o.PaymentMethod = pricing.PaymentMethod(method)
	if err := json.Unmarshal(addr, &o.Address); err != nil {
		return Order{}, fmt.Errorf("order %s: address: %w", o.ID, err)
	}
	targets := []*decimal.Decimal{&o.Bill.TotalMRP, &o.Bill.TotalSelling, &o.Bill.ItemDiscount,
		&o.Bill.CouponDiscount, &o.Bill.DeliveryFee, &o.Bill.CODFee, &o.Bill.FinalAmount}
	for i, dst := range targets {
		d, err := decimal.NewFromString(money[i])
		if err != nil {
			return Order{}, fmt.Errorf("order %s: amount: %w", o.ID, err)
		}
		*dst = d
	}
	return o, nil
}

// List returns a page of the user's orders, newest first, without items.
func (s PGStore) List(ctx context.Context, userID string, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders
WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	return out, total, rows.Err()
}

// Get returns one order with its items.
func (s PGStore) Get(ctx context.Context, userID, id string) (Order, error) {
	o, err := scanOrder(s.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, id, userID))
	if db.IsNoRows(err) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}
	rows, err := s.DB.Query(ctx, `SELECT `+itemColumns+` FROM order_items oi WHERE oi.order_id = $1 ORDER BY oi.name`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

const itemColumns = `oi.id::text, oi.order_id::text, oi.product_id::text, COALESCE(oi.variant_id::text, ''), oi.name,
	oi.variant_name, oi.image_url, oi.unit_price::text, oi.unit_mrp::text, oi.quantity, oi.status, oi.delivered_at`

func scanItem(row pgx.Row) (Item, error) {
	var (
		it          Item
		price, mrp  string
		deliveredAt *time.Time
	)
	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Name, &it.VariantName,
		&it.ImageURL, &price, &mrp, &it.Quantity, &it.Status, &deliveredAt); err != nil {
		return Item{}, err
	}
	var err error
	if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
		return Item{}, fmt.Errorf("order item %s: unit_price: %w", it.ID, err)
	}
	if it.UnitMRP, err = decimal.NewFromString(mrp); err != nil {
		return Item{}, fmt.Errorf("order item %s: unit_mrp: %w", it.ID, err)
	}
	it.DeliveredAt = deliveredAt
	return it, nil
}

// Item returns one order item owned by the user.
func (s PGStore) Item(ctx context.Context, userID, itemID string) (Item, error) {
	it, err := scanItem(s.DB.QueryRow(ctx, `SELECT `+itemColumns+`
FROM order_items oi JOIN orders o ON o.id = oi.order_id
WHERE oi.id = $1 AND o.user_id = $2`, itemID, userID))
	if db.IsNoRows(err) {
		return Item{}, ErrNotFound
	}
	return it, err
}
