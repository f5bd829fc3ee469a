package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/address"
	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/checkout"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/lock"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
	"github.com/noah-isme/storefront-checkout/internal/shipping"
)

const (
	userID    = "0b6f3c52-8d1e-4b7a-9f11-2c3d4e5f6a7b"
	homeID    = "1a2b3c4d-0000-4000-8000-000000000001"
	officeID  = "1a2b3c4d-0000-4000-8000-000000000002"
	remoteID  = "1a2b3c4d-0000-4000-8000-000000000003"
	kurtaID   = "9e8d7c6b-0000-4000-8000-0000000000aa"
	gwSecret  = "sandbox-secret"
	noSession = "00000000-0000-4000-8000-000000000000"
)

type fixture struct {
	mr      *miniredis.Miniredis
	svc     *checkout.Service
	cart    *fakeCart
	coupons *couponStore
	orders  *order.MemStore
	sandbox *payment.Sandbox
	events  *recorder
}

func dec(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func cartItems() []pricing.LineItem {
	return []pricing.LineItem{
		{ProductID: "p-shirt", Name: "Shirt", UnitPrice: dec(300), UnitMRP: dec(400), Quantity: 1, Stock: 10, IsCOD: boolPtr(true)},
		{ProductID: "p-jeans", Name: "Jeans", UnitPrice: dec(900), UnitMRP: dec(1200), Quantity: 1, Stock: 3, IsCOD: boolPtr(true)},
		{ProductID: "p-soldout", Name: "Cap", UnitPrice: dec(100), UnitMRP: dec(100), Quantity: 1, Stock: 0, IsCOD: boolPtr(true)},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		mr:   mr,
		cart: &fakeCart{items: cartItems()},
		coupons: &couponStore{
			byCode: map[string]coupon.Coupon{
				"SAVE10": {ID: "c1", Code: "SAVE10", DiscountType: pricing.CouponPercentage, DiscountValue: dec(10), MinOrderValue: dec(500), IsActive: true},
				"BIG":    {ID: "c2", Code: "BIG", DiscountType: pricing.CouponFixed, DiscountValue: dec(100), MinOrderValue: dec(2000), IsActive: true},
			},
			usages: map[string]decimal.Decimal{},
		},
		orders:  order.NewMemStore(),
		sandbox: payment.NewSandbox(gwSecret),
		events:  &recorder{},
	}
	addrs := &fakeAddresses{
		def: homeID,
		byID: map[string]address.Address{
			homeID:   {ID: homeID, Name: "Asha", Phone: "9876543210", Line1: "12 MG Road", City: "Bengaluru", State: "KA", Pincode: "560001"},
			officeID: {ID: officeID, Name: "Asha", Phone: "9876543210", Line1: "Tower B", City: "Delhi", State: "DL", Pincode: "110001"},
			remoteID: {ID: remoteID, Name: "Asha", Phone: "9876543210", Line1: "Hill Road", City: "Aizawl", State: "MZ", Pincode: "799999"},
		},
	}
	f.svc = &checkout.Service{
		Sessions:  checkout.RedisStore{R: client, TTL: time.Minute},
		Locks:     lock.Locker{R: client, Prefix: "lock:", RetryBackoff: 5 * time.Millisecond, MaxWait: time.Second},
		Addresses: addrs,
		Cart:      f.cart,
		Catalog: fakeCatalog{item: pricing.LineItem{
			ProductID: kurtaID, Name: "Kurta", UnitPrice: dec(300), UnitMRP: dec(500), Stock: 5, IsCOD: boolPtr(true),
		}},
		Serviceability: &shipping.Service{Client: shipping.MockClient{
			Unserviceable: map[string]bool{"799999": true},
			NoCOD:         map[string]bool{"110001": true},
		}},
		Coupons:      &coupon.Service{Store: f.coupons},
		Orders:       &order.Service{Store: f.orders},
		Gateway:      f.sandbox,
		Contacts:     fakeContacts{user: auth.User{ID: userID, Name: "Asha", Phone: "9876543210", Email: "asha@example.com"}},
		Events:       f.events,
		AppState:     fakeState{},
		Policy:       pricing.DefaultPolicy(),
		Currency:     "INR",
		GatewayKey:   "key_test",
		MerchantName: "Storefront",
	}
	return f
}

func (f *fixture) start(t *testing.T) checkout.View {
	t.Helper()
	v, err := f.svc.Start(context.Background(), userID, checkout.StartInput{Mode: checkout.ModeCart})
	require.NoError(t, err)
	return v
}

func requireCode(t *testing.T, err error, code string, status int) {
	t.Helper()
	appErr, ok := common.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
}

func requireDec(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(dec(want)), "want %d, got %s", want, got)
}

func TestStartCartComputesBillOverInStockItems(t *testing.T) {
	f := newFixture(t)
	v := f.start(t)

	require.Equal(t, checkout.StateReady, v.State)
	require.Equal(t, homeID, v.Address.ID)
	require.True(t, v.CODAllowed)
	require.NotNil(t, v.Delivery)
	require.True(t, v.Delivery.Serviceable)
	require.Equal(t, 2, v.Bill.ItemCount)
	requireDec(t, 1600, v.Bill.TotalMRP)
	requireDec(t, 1200, v.Bill.TotalSelling)
	requireDec(t, 400, v.Bill.ItemDiscount)
	requireDec(t, 0, v.Bill.DeliveryFee)
	require.False(t, v.CanSubmit, "no payment method yet")

	got, err := f.svc.Get(context.Background(), userID, v.ID)
	require.NoError(t, err)
	require.Equal(t, v.ID, got.ID)
	require.True(t, f.mr.Exists("checkout:session:"+v.ID))

	_, err = f.svc.Get(context.Background(), "someone-else", v.ID)
	requireCode(t, err, "CHECKOUT_NOT_FOUND", http.StatusNotFound)
}

func TestStartLoadFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.cart.err = errors.New("connection reset")

	_, err := f.svc.Start(context.Background(), userID, checkout.StartInput{Mode: checkout.ModeCart})
	requireCode(t, err, "CHECKOUT_LOAD_FAILED", http.StatusBadGateway)
	require.Empty(t, f.mr.Keys())
}

func TestStartValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Start(context.Background(), userID, checkout.StartInput{Mode: "wishlist"})
	requireCode(t, err, "VALIDATION_ERROR", http.StatusBadRequest)
	_, err = f.svc.Start(context.Background(), userID, checkout.StartInput{Mode: checkout.ModeBuyNow})
	requireCode(t, err, "VALIDATION_ERROR", http.StatusBadRequest)
	require.Empty(t, f.mr.Keys())
}

func TestCODDisallowedWhenAnyItemIsNotCOD(t *testing.T) {
	f := newFixture(t)
	f.cart.items[1].IsCOD = nil
	v := f.start(t)
	require.False(t, v.CODAllowed)
	require.Contains(t, v.CODReason, "one or more items")

	_, err := f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "COD")
	requireCode(t, err, "COD_NOT_AVAILABLE", http.StatusConflict)

	after, err := f.svc.Get(context.Background(), userID, v.ID)
	require.NoError(t, err)
	require.Empty(t, after.Method)
	require.Equal(t, checkout.StateReady, after.State)
}

func TestSelectAddressDropsCODSelection(t *testing.T) {
	f := newFixture(t)
	v := f.start(t)
	v, err := f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "cod")
	require.NoError(t, err)
	require.Equal(t, pricing.MethodCOD, v.Method)
	requireDec(t, 50, v.Bill.CODFee)
	requireDec(t, 1250, v.Bill.FinalAmount)

	v, err = f.svc.SelectAddress(context.Background(), userID, v.ID, officeID)
	require.NoError(t, err)
	require.False(t, v.CODAllowed)
	require.Empty(t, v.Method)
	require.NotEmpty(t, v.Message)
	requireDec(t, 0, v.Bill.CODFee)
}

func TestUnserviceablePincodeBlocksSubmit(t *testing.T) {
	f := newFixture(t)
	v := f.start(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "ONLINE")
	require.NoError(t, err)
	v, err = f.svc.SelectAddress(context.Background(), userID, v.ID, remoteID)
	require.NoError(t, err)
	require.False(t, v.CanSubmit)

	_, err = f.svc.Submit(context.Background(), userID, v.ID, "req-1")
	requireCode(t, err, "PINCODE_NOT_SERVICEABLE", http.StatusUnprocessableEntity)
	require.Empty(t, f.orders.All())
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)
	v := f.start(t)

	_, err := f.svc.ApplyCoupon(context.Background(), userID, v.ID, "BIG")
	requireCode(t, err, "COUPON_MIN_ORDER", http.StatusUnprocessableEntity)
	_, err = f.svc.ApplyCoupon(context.Background(), userID, v.ID, "NOPE")
	requireCode(t, err, "COUPON_NOT_FOUND", http.StatusUnprocessableEntity)

	unchanged, err := f.svc.Get(context.Background(), userID, v.ID)
	require.NoError(t, err)
	require.Nil(t, unchanged.Coupon)
	requireDec(t, 1200, unchanged.Bill.FinalAmount)

	v, err = f.svc.ApplyCoupon(context.Background(), userID, v.ID, " save10 ")
	require.NoError(t, err)
	require.Equal(t, "SAVE10", v.Coupon.Terms.Code)
	requireDec(t, 120, v.Bill.CouponDiscount)
	requireDec(t, 1080, v.Bill.FinalAmount)

	v, err = f.svc.RemoveCoupon(context.Background(), userID, v.ID)
	require.NoError(t, err)
	require.Nil(t, v.Coupon)
	requireDec(t, 1200, v.Bill.FinalAmount)
}

func TestBuyNowQuantity(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.Start(context.Background(), userID, checkout.StartInput{Mode: checkout.ModeBuyNow, ProductID: kurtaID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	requireDec(t, 600, v.Bill.TotalSelling)

	v, err = f.svc.ApplyCoupon(context.Background(), userID, v.ID, "SAVE10")
	require.NoError(t, err)
	requireDec(t, 60, v.Bill.CouponDiscount)

	v, err = f.svc.UpdateQuantity(context.Background(), userID, v.ID, 1)
	require.NoError(t, err)
	require.Nil(t, v.Coupon)
	require.Contains(t, v.Message, "SAVE10")
	requireDec(t, 300, v.Bill.TotalSelling)
	requireDec(t, 40, v.Bill.DeliveryFee)

	v, err = f.svc.UpdateQuantity(context.Background(), userID, v.ID, 99)
	require.NoError(t, err)
	require.Equal(t, 5, v.Items[0].Quantity)
	require.Zero(t, f.cart.clearCount())

	_, err = f.svc.UpdateQuantity(context.Background(), userID, v.ID, 0)
	requireCode(t, err, "VALIDATION_ERROR", http.StatusBadRequest)

	cartView := f.start(t)
	_, err = f.svc.UpdateQuantity(context.Background(), userID, cartView.ID, 2)
	requireCode(t, err, "VALIDATION_ERROR", http.StatusBadRequest)
}

func TestSubmitRequiresSelections(t *testing.T) {
	f := newFixture(t)
	v := f.start(t)
	_, err := f.svc.Submit(context.Background(), userID, v.ID, "")
	requireCode(t, err, "VALIDATION_ERROR", http.StatusBadRequest)
	_, err = f.svc.Submit(context.Background(), userID, v.ID, "req-1")
	requireCode(t, err, "VALIDATION_ERROR", http.StatusBadRequest)

	f.cart.items = []pricing.LineItem{cartItems()[2]}
	empty := f.start(t)
	require.False(t, empty.CanSubmit)
	_, err = f.svc.SelectPaymentMethod(context.Background(), userID, empty.ID, "ONLINE")
	require.NoError(t, err)
	_, err = f.svc.Submit(context.Background(), userID, empty.ID, "req-2")
	requireCode(t, err, "OUT_OF_STOCK", http.StatusUnprocessableEntity)
	require.Empty(t, f.orders.All())
}

func TestSubmitCOD(t *testing.T) {
	f := newFixture(t)
	v := f.start(t)
	_, err := f.svc.ApplyCoupon(context.Background(), userID, v.ID, "SAVE10")
	require.NoError(t, err)
	_, err = f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "COD")
	require.NoError(t, err)

	done, err := f.svc.Submit(context.Background(), userID, v.ID, "req-1")
	require.NoError(t, err)
	require.Equal(t, checkout.StateDone, done.State)
	require.NotEmpty(t, done.OrderID)
	require.NotNil(t, done.AppState)

	orders := f.orders.All()
	require.Len(t, orders, 1)
	o := orders[0]
	require.Equal(t, order.StatusPlaced, o.Status)
	require.Equal(t, order.PaymentPending, o.PaymentStatus)
	require.Equal(t, "SAVE10", o.CouponCode)
	require.Len(t, o.Items, 2, "out-of-stock items are not ordered")
	requireDec(t, 1130, o.Bill.FinalAmount)
	require.Equal(t, "560001", o.Address.Pincode)

	require.Equal(t, 1, f.cart.clearCount())
	require.Equal(t, 1, f.coupons.usageCount())
	requireDec(t, 120, f.coupons.usages[o.ID])
	require.Equal(t, []string{events.TopicOrderPlaced}, f.events.seen())

	_, err = f.svc.Submit(context.Background(), userID, v.ID, "req-2")
	requireCode(t, err, "CHECKOUT_COMPLETE", http.StatusConflict)
	_, err = f.svc.RemoveCoupon(context.Background(), userID, v.ID)
	requireCode(t, err, "CHECKOUT_COMPLETE", http.StatusConflict)
}

func (f *fixture) submitOnline(t *testing.T, requestID string) checkout.View {
	t.Helper()
	v := f.start(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "ONLINE")
	require.NoError(t, err)
	v, err = f.svc.Submit(context.Background(), userID, v.ID, requestID)
	require.NoError(t, err)
	return v
}

func (f *fixture) success(v checkout.View, requestID string) checkout.CompleteInput {
	paymentID := payment.NewPaymentID()
	return checkout.CompleteInput{RequestID: requestID, Result: payment.Callback{
		PaymentID:      paymentID,
		GatewayOrderID: v.GatewayOrderID,
		Signature:      f.sandbox.Sign(v.GatewayOrderID, paymentID),
	}}
}

func TestSubmitOnlineAndVerify(t *testing.T) {
	f := newFixture(t)
	v := f.submitOnline(t, "req-1")

	require.Equal(t, checkout.StateOnlineSubmitting, v.State)
	require.NotNil(t, v.Payment)
	require.Equal(t, int64(120000), v.Payment.Amount)
	require.Equal(t, "INR", v.Payment.Currency)
	require.Equal(t, "key_test", v.Payment.Key)
	require.Equal(t, "9876543210", v.Payment.Prefill.Contact)
	require.Equal(t, "asha@example.com", v.Payment.Prefill.Email)
	require.True(t, v.Payment.ReadOnly["contact"])
	require.True(t, v.Payment.ReadOnly["email"])

	o, err := f.orders.Get(context.Background(), userID, v.OrderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, o.Status)
	require.Equal(t, v.GatewayOrderID, o.GatewayOrderID)
	require.Zero(t, f.cart.clearCount())

	done, err := f.svc.CompletePayment(context.Background(), userID, v.ID, f.success(v, "req-1"))
	require.NoError(t, err)
	require.Equal(t, checkout.StateDone, done.State)
	require.Nil(t, done.Payment)
	require.Equal(t, 1, f.cart.clearCount())
	require.Equal(t, []string{events.TopicPaymentVerified}, f.events.seen())
}

func TestVerificationRejectedKeepsOrderPending(t *testing.T) {
	f := newFixture(t)
	v := f.start(t)
	_, err := f.svc.ApplyCoupon(context.Background(), userID, v.ID, "SAVE10")
	require.NoError(t, err)
	_, err = f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "ONLINE")
	require.NoError(t, err)
	v, err = f.svc.Submit(context.Background(), userID, v.ID, "req-1")
	require.NoError(t, err)
	orderID := v.OrderID

	in := f.success(v, "req-1")
	in.Result.Signature = "forged"
	failed, err := f.svc.CompletePayment(context.Background(), userID, v.ID, in)
	requireCode(t, err, "PAYMENT_NOT_VERIFIED", http.StatusPaymentRequired)
	require.Equal(t, checkout.StateFailed, failed.State)
	require.Contains(t, failed.Failure.Message, "contact support")
	require.True(t, failed.CanSubmit, "submit is re-enabled")

	o, err := f.orders.Get(context.Background(), userID, orderID)
	require.NoError(t, err)
	require.Equal(t, order.StatusPending, o.Status)
	require.Zero(t, f.cart.clearCount())
	require.Zero(t, f.coupons.usageCount())
	require.Equal(t, []string{events.TopicPaymentFailed}, f.events.seen())

	retry, err := f.svc.Submit(context.Background(), userID, v.ID, "req-2")
	require.NoError(t, err)
	require.NotEqual(t, orderID, retry.OrderID)
	require.Len(t, f.orders.All(), 2)
}

func TestVerificationErrorFails(t *testing.T) {
	f := newFixture(t)
	f.svc.Gateway = brokenGateway{Sandbox: f.sandbox}
	v := f.submitOnline(t, "req-1")

	failed, err := f.svc.CompletePayment(context.Background(), userID, v.ID, f.success(v, "req-1"))
	requireCode(t, err, "PAYMENT_NOT_VERIFIED", http.StatusPaymentRequired)
	require.Equal(t, checkout.StateFailed, failed.State)
	require.Zero(t, f.cart.clearCount())
}

func TestUserCancelReturnsToReady(t *testing.T) {
	f := newFixture(t)
	v := f.submitOnline(t, "req-1")

	ready, err := f.svc.CompletePayment(context.Background(), userID, v.ID, checkout.CompleteInput{
		RequestID: "req-1",
		Result:    payment.Callback{Error: &payment.CallbackError{Code: "2", Description: "Payment cancelled by user"}},
	})
	require.NoError(t, err)
	require.Equal(t, checkout.StateReady, ready.State)
	require.Nil(t, ready.Failure)
	require.True(t, ready.CanSubmit)
	require.Empty(t, ready.ActiveRequestID)
}

func TestGatewayFailureSurfacesDescription(t *testing.T) {
	f := newFixture(t)
	v := f.submitOnline(t, "req-1")

	failed, err := f.svc.CompletePayment(context.Background(), userID, v.ID, checkout.CompleteInput{
		RequestID: "req-1",
		Result:    payment.Callback{Error: &payment.CallbackError{Code: "BAD_REQUEST_ERROR", Description: "Your card was declined"}},
	})
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, "PAYMENT_FAILED", appErr.Code)
	require.Equal(t, "Your card was declined", appErr.Message)
	require.Equal(t, checkout.StateFailed, failed.State)
	require.True(t, failed.CanSubmit)
	require.Zero(t, f.cart.clearCount())
}

func TestStaleResultIsDiscarded(t *testing.T) {
	f := newFixture(t)
	v := f.submitOnline(t, "req-2")

	_, err := f.svc.CompletePayment(context.Background(), userID, v.ID, f.success(v, "req-1"))
	requireCode(t, err, "STALE_RESULT", http.StatusConflict)

	still, err := f.svc.Get(context.Background(), userID, v.ID)
	require.NoError(t, err)
	require.Equal(t, checkout.StateOnlineSubmitting, still.State)
	require.Equal(t, "req-2", still.ActiveRequestID)
}

func TestOnlineRequiresContactBeforeWriting(t *testing.T) {
	f := newFixture(t)
	f.svc.Contacts = fakeContacts{user: auth.User{ID: userID}}
	v := f.start(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "ONLINE")
	require.NoError(t, err)

	_, err = f.svc.Submit(context.Background(), userID, v.ID, "req-1")
	requireCode(t, err, "VALIDATION_ERROR", http.StatusBadRequest)
	require.Empty(t, f.orders.All())
}

func TestDoubleSubmitRejected(t *testing.T) {
	f := newFixture(t)
	gated := newGated(gwSecret)
	f.svc.Gateway = gated
	v := f.start(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "ONLINE")
	require.NoError(t, err)

	first := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(context.Background(), userID, v.ID, "req-1")
		first <- err
	}()
	<-gated.entered

	_, err = f.svc.Submit(context.Background(), userID, v.ID, "req-2")
	requireCode(t, err, "CHECKOUT_IN_PROGRESS", http.StatusConflict)
	_, err = f.svc.ApplyCoupon(context.Background(), userID, v.ID, "SAVE10")
	requireCode(t, err, "CHECKOUT_IN_PROGRESS", http.StatusConflict)

	close(gated.release)
	require.NoError(t, <-first)
	require.Len(t, f.orders.All(), 1)
}

func TestSubmitSurvivesClientDisconnect(t *testing.T) {
	f := newFixture(t)
	gated := newGated(gwSecret)
	f.svc.Gateway = gated
	v := f.start(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "ONLINE")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		v   checkout.View
		err error
	}
	out := make(chan result, 1)
	go func() {
		v, err := f.svc.Submit(ctx, userID, v.ID, "req-1")
		out <- result{v, err}
	}()
	<-gated.entered
	cancel()
	close(gated.release)

	res := <-out
	require.NoError(t, res.err)
	require.NotEmpty(t, res.v.GatewayOrderID)
}

func TestAbandonDiscardsLateResult(t *testing.T) {
	f := newFixture(t)
	gated := newGated(gwSecret)
	f.svc.Gateway = gated
	v := f.start(t)
	_, err := f.svc.SelectPaymentMethod(context.Background(), userID, v.ID, "ONLINE")
	require.NoError(t, err)

	late := make(chan error, 1)
	go func() {
		_, err := f.svc.Submit(context.Background(), userID, v.ID, "req-1")
		late <- err
	}()
	<-gated.entered
	require.NoError(t, f.svc.Abandon(context.Background(), userID, v.ID))
	close(gated.release)

	requireCode(t, <-late, "CHECKOUT_NOT_FOUND", http.StatusNotFound)
	_, err = f.svc.Get(context.Background(), userID, v.ID)
	requireCode(t, err, "CHECKOUT_NOT_FOUND", http.StatusNotFound)
	require.False(t, f.mr.Exists("checkout:session:"+v.ID))

	err = f.svc.Abandon(context.Background(), userID, noSession)
	requireCode(t, err, "CHECKOUT_NOT_FOUND", http.StatusNotFound)
}

func TestSessionExpires(t *testing.T) {
	f := newFixture(t)
	v := f.start(t)
	f.mr.FastForward(2 * time.Minute)
	_, err := f.svc.Get(context.Background(), userID, v.ID)
	requireCode(t, err, "CHECKOUT_NOT_FOUND", http.StatusNotFound)
}
