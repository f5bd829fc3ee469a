package pricing_test

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func boolPtr(b bool) *bool { return &b }

func item(price, mrp string, qty, stock int) pricing.LineItem {
	return pricing.LineItem{ProductID: "p", Name: "Item", UnitPrice: d(price), UnitMRP: d(mrp), Quantity: qty, Stock: stock, IsCOD: boolPtr(true)}
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, d(want).Equal(got), "want %s got %s", want, got)
}

func TestComputeSingleItemNoCoupon(t *testing.T) {
	bill := pricing.Compute([]pricing.LineItem{item("450", "500", 1, 10)}, "", nil, pricing.DefaultPolicy(), pricing.Options{InStockOnly: true})
	require.Equal(t, 1, bill.ItemCount)
	requireDec(t, "50", bill.ItemDiscount)
	requireDec(t, "40", bill.DeliveryFee)
	requireDec(t, "0", bill.CODFee)
	requireDec(t, "490", bill.FinalAmount)
}

func TestComputeFixedCoupon(t *testing.T) {
	coupon := &pricing.CouponTerms{Code: "FLAT100", Type: pricing.CouponFixed, Value: d("100")}
	bill := pricing.Compute([]pricing.LineItem{item("450", "500", 1, 10)}, "", coupon, pricing.DefaultPolicy(), pricing.Options{})
	requireDec(t, "100", bill.CouponDiscount)
	requireDec(t, "40", bill.DeliveryFee)
	requireDec(t, "390", bill.FinalAmount)
}

func TestComputeEmptyCart(t *testing.T) {
	bill := pricing.Compute(nil, "", nil, pricing.DefaultPolicy(), pricing.Options{InStockOnly: true})
	require.Zero(t, bill.ItemCount)
	requireDec(t, "40", bill.FinalAmount)
}

func TestDeliveryFeeBoundary(t *testing.T) {
	policy := pricing.DefaultPolicy()
	cases := []struct {
		price string
		fee   string
	}{
		{"499", "40"},
		{"500", "40"},
		{"500.01", "0"},
		{"501", "0"},
	}
	for _, tc := range cases {
		bill := pricing.Compute([]pricing.LineItem{item(tc.price, tc.price, 1, 1)}, "", nil, policy, pricing.Options{})
		requireDec(t, tc.fee, bill.DeliveryFee)
	}

	coupon := &pricing.CouponTerms{Type: pricing.CouponFixed, Value: d("10")}
	bill := pricing.Compute([]pricing.LineItem{item("505", "505", 1, 1)}, "", coupon, policy, pricing.Options{})
	requireDec(t, "40", bill.DeliveryFee)
}

func TestCODFeeOnlyForCOD(t *testing.T) {
	items := []pricing.LineItem{item("600", "700", 1, 3)}
	policy := pricing.DefaultPolicy()

	cod := pricing.Compute(items, pricing.MethodCOD, nil, policy, pricing.Options{})
	requireDec(t, "50", cod.CODFee)
	requireDec(t, "650", cod.FinalAmount)

	online := pricing.Compute(items, pricing.MethodOnline, nil, policy, pricing.Options{})
	requireDec(t, "0", online.CODFee)
	requireDec(t, "600", online.FinalAmount)

	none := pricing.Compute(items, "", nil, policy, pricing.Options{})
	requireDec(t, "0", none.CODFee)
}

func TestInStockOnlyAndWaiveDelivery(t *testing.T) {
	items := []pricing.LineItem{item("100", "120", 2, 5), item("300", "300", 1, 0)}

	checkout := pricing.Compute(items, "", nil, pricing.DefaultPolicy(), pricing.Options{InStockOnly: true})
	require.Equal(t, 2, checkout.ItemCount)
	requireDec(t, "200", checkout.TotalSelling)

	cart := pricing.Compute(items, "", nil, pricing.DefaultPolicy(), pricing.Options{WaiveDelivery: true})
	require.Equal(t, 3, cart.ItemCount)
	requireDec(t, "500", cart.TotalSelling)
	requireDec(t, "0", cart.DeliveryFee)
	requireDec(t, "500", cart.FinalAmount)
}

func TestPercentageCouponCap(t *testing.T) {
	capAmount := d("75")
	coupon := pricing.CouponTerms{Type: pricing.CouponPercentage, Value: d("20"), MaxDiscount: &capAmount}
	requireDec(t, "75", coupon.Discount(d("1000")))
	requireDec(t, "40", coupon.Discount(d("200")))

	uncapped := pricing.CouponTerms{Type: pricing.CouponPercentage, Value: d("33.333")}
	requireDec(t, "33.33", uncapped.Discount(d("100")))
}

func TestCouponDiscountNeverExceedsTotal(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		total := decimal.New(r.Int63n(200000), -2)
		value := decimal.New(r.Int63n(500000), -2)
		var terms pricing.CouponTerms
		if i%2 == 0 {
			terms = pricing.CouponTerms{Type: pricing.CouponFixed, Value: value}
		} else {
			pct := decimal.New(r.Int63n(20000), -2)
			terms = pricing.CouponTerms{Type: pricing.CouponPercentage, Value: pct}
			if i%3 == 0 {
				terms.MaxDiscount = &value
			}
		}
		got := terms.Discount(total)
		require.False(t, got.IsNegative())
		require.Truef(t, got.LessThanOrEqual(total), "discount %s exceeds total %s", got, total)
		if terms.MaxDiscount != nil {
			require.True(t, got.LessThanOrEqual(*terms.MaxDiscount))
		}
	}
}

func TestToMinorUnits(t *testing.T) {
	require.Equal(t, int64(49000), pricing.ToMinorUnits(d("490")))
	require.Equal(t, int64(12346), pricing.ToMinorUnits(d("123.455")))
	require.Equal(t, int64(1), pricing.ToMinorUnits(d("0.005")))
}

func TestClampQuantityAndMethod(t *testing.T) {
	require.Equal(t, 1, pricing.ClampQuantity(0, 5))
	require.Equal(t, 5, pricing.ClampQuantity(9, 5))
	require.Equal(t, 9, pricing.ClampQuantity(9, 0))

	m, err := pricing.ParsePaymentMethod(" cod ")
	require.NoError(t, err)
	require.Equal(t, pricing.MethodCOD, m)
	_, err = pricing.ParsePaymentMethod("upi")
	require.ErrorIs(t, err, pricing.ErrUnknownMethod)
}

func TestCODEligibleNilIsFalse(t *testing.T) {
	li := item("1", "1", 1, 1)
	li.IsCOD = nil
	require.False(t, li.CODEligible())
}
