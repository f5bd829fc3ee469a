package checkout_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/storefront-checkout/internal/address"
	"github.com/noah-isme/storefront-checkout/internal/appstate"
	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

type fakeAddresses struct {
	byID map[string]address.Address
	def  string
}

func (f *fakeAddresses) GetDefault(_ context.Context, _ string) (address.Address, error) {
	if f.def == "" {
		return address.Address{}, common.NotFound("address")
	}
	return f.byID[f.def], nil
}

func (f *fakeAddresses) Get(_ context.Context, _ string, id string) (address.Address, error) {
	a, ok := f.byID[id]
	if !ok {
		return address.Address{}, common.NotFound("address")
	}
	return a, nil
}

type fakeCart struct {
	mu      sync.Mutex
	items   []pricing.LineItem
	err     error
	cleared int
}

func (f *fakeCart) Items(context.Context, string) ([]pricing.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]pricing.LineItem(nil), f.items...), nil
}

func (f *fakeCart) Clear(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return nil
}

func (f *fakeCart) clearCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cleared
}

type fakeCatalog struct {
	item pricing.LineItem
}

func (f fakeCatalog) LineItemFor(_ context.Context, productID, _ string, qty int) (pricing.LineItem, error) {
	if productID != f.item.ProductID {
		return pricing.LineItem{}, common.NotFound("product")
	}
	li := f.item
	li.Quantity = qty
	return li, nil
}

type couponStore struct {
	mu     sync.Mutex
	byCode map[string]coupon.Coupon
	usages map[string]decimal.Decimal
}

func (c *couponStore) GetByCode(_ context.Context, code string) (coupon.Coupon, error) {
	cp, ok := c.byCode[code]
	if !ok {
		return coupon.Coupon{}, coupon.ErrNotFound
	}
	return cp, nil
}

func (c *couponStore) ListActive(context.Context, time.Time) ([]coupon.Coupon, error) {
	return nil, nil
}

func (c *couponStore) RecordUsage(_ context.Context, _, _, orderID string, d decimal.Decimal) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.usages[orderID]; ok {
		return false, nil
	}
	c.usages[orderID] = d
	return true, nil
}

func (c *couponStore) usageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.usages)
}

type fakeContacts struct {
	user auth.User
}

func (f fakeContacts) Me(context.Context, string) (auth.User, error) { return f.user, nil }

type recorder struct {
	mu     sync.Mutex
	topics []string
}

func (r *recorder) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

type fakeState struct{}

func (fakeState) Load(_ context.Context, userID string) (appstate.State, error) {
	return appstate.State{UserID: userID, Authenticated: true}, nil
}

// gatedGateway blocks CreateOrder until released.
type gatedGateway struct {
	*payment.Sandbox
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGated(secret string) *gatedGateway {
	return &gatedGateway{Sandbox: payment.NewSandbox(secret), entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (payment.GatewayOrder, error) {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return payment.GatewayOrder{}, err
	}
	return g.Sandbox.CreateOrder(ctx, req)
}

type brokenGateway struct {
	*payment.Sandbox
}

func (brokenGateway) Verify(context.Context, payment.VerifyRequest) (bool, error) {
	return false, errors.New("verification function unavailable")
}

func boolPtr(b bool) *bool { return &b }
