package coupon_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

type memStore struct {
	mu      sync.Mutex
	coupons map[string]coupon.Coupon
	usages  map[string]decimal.Decimal
	err     error
}

func newMemStore(list ...coupon.Coupon) *memStore {
	s := &memStore{coupons: map[string]coupon.Coupon{}, usages: map[string]decimal.Decimal{}}
	for _, c := range list {
		s.coupons[strings.ToLower(c.Code)] = c
	}
	return s
}

func (s *memStore) GetByCode(_ context.Context, code string) (coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return coupon.Coupon{}, s.err
	}
	c, ok := s.coupons[strings.ToLower(code)]
	if !ok {
		return coupon.Coupon{}, coupon.ErrNotFound
	}
	return c, nil
}

func (s *memStore) ListActive(_ context.Context, now time.Time) ([]coupon.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []coupon.Coupon
	for _, c := range s.coupons {
		if c.Check(now, decimal.NewFromInt(1<<30)) == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *memStore) RecordUsage(_ context.Context, couponID, _, orderID string, discount decimal.Decimal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usages[orderID]; ok {
		return false, nil
	}
	s.usages[orderID] = discount
	c := s.coupons[strings.ToLower(couponID)]
	c.UsageCount++
	s.coupons[strings.ToLower(couponID)] = c
	return true, nil
}

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixed(code, value, minOrder string) coupon.Coupon {
	return coupon.Coupon{
		ID:            code,
		Code:          code,
		DiscountType:  pricing.CouponFixed,
		DiscountValue: decimal.RequireFromString(value),
		MinOrderValue: decimal.RequireFromString(minOrder),
		IsActive:      true,
	}
}

func newService(store coupon.Store) (*coupon.Service, *prometheus.CounterVec) {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_coupon_validations_total"}, []string{"result"})
	return &coupon.Service{Store: store, Now: func() time.Time { return now }, Validations: vec}, vec
}

func TestValidateCaseInsensitive(t *testing.T) {
	svc, vec := newService(newMemStore(fixed("FLAT100", "100", "300")))
	applied, err := svc.Validate(context.Background(), "  flat100 ", decimal.NewFromInt(450))
	require.NoError(t, err)
	require.Equal(t, "FLAT100", applied.Terms.Code)
	require.True(t, applied.Terms.Value.Equal(decimal.NewFromInt(100)))
	require.Equal(t, 1.0, testutil.ToFloat64(vec.WithLabelValues("ok")))
}

func TestValidateReasons(t *testing.T) {
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	limit := 5

	inactive := fixed("OFF", "10", "0")
	inactive.IsActive = false
	notStarted := fixed("SOON", "10", "0")
	notStarted.StartDate = &future
	expired := fixed("OLD", "10", "0")
	expired.EndDate = &past
	exhausted := fixed("GONE", "10", "0")
	exhausted.UsageLimit = &limit
	exhausted.UsageCount = 5
	minOrder := fixed("BIG", "10", "1000")

	svc, _ := newService(newMemStore(inactive, notStarted, expired, exhausted, minOrder))
	cases := map[string]string{
		"NOPE": "COUPON_NOT_FOUND",
		"OFF":  "COUPON_INACTIVE",
		"SOON": "COUPON_NOT_STARTED",
		"OLD":  "COUPON_EXPIRED",
		"GONE": "COUPON_USAGE_LIMIT",
		"BIG":  "COUPON_MIN_ORDER",
	}
	for code, want := range cases {
		_, err := svc.Validate(context.Background(), code, decimal.NewFromInt(450))
		appErr, ok := common.AsAppError(err)
		require.Truef(t, ok, "code %s", code)
		require.Equal(t, want, appErr.Code)
		require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	}

	_, err := svc.Validate(context.Background(), "BIG", decimal.NewFromInt(450))
	require.ErrorIs(t, err, coupon.ErrMinOrderNotMet)
	require.Contains(t, err.Error(), "1000.00")
}

func TestValidateEmptyAndBackendFailure(t *testing.T) {
	store := newMemStore()
	svc, _ := newService(store)
	_, err := svc.Validate(context.Background(), "  ", decimal.NewFromInt(1))
	appErr, _ := common.AsAppError(err)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	store.err = errors.New("connection reset")
	_, err = svc.Validate(context.Background(), "ANY", decimal.NewFromInt(1))
	appErr, _ = common.AsAppError(err)
	require.Equal(t, "UPSTREAM_ERROR", appErr.Code)
}

func TestRecordUsageIdempotentPerOrder(t *testing.T) {
	store := newMemStore(fixed("FLAT100", "100", "0"))
	svc, _ := newService(store)
	applied := coupon.Applied{CouponID: "FLAT100", Terms: store.coupons["flat100"].Terms()}

	require.NoError(t, svc.RecordUsage(context.Background(), applied, "u1", "order-1", decimal.NewFromInt(100)))
	require.NoError(t, svc.RecordUsage(context.Background(), applied, "u1", "order-1", decimal.NewFromInt(100)))
	require.Equal(t, 1, store.coupons["flat100"].UsageCount)
	require.True(t, store.usages["order-1"].Equal(decimal.NewFromInt(100)))
}

func TestAppliedStillMeetsMinimum(t *testing.T) {
	applied := coupon.Applied{Terms: fixed("X", "50", "500").Terms()}
	require.True(t, applied.StillMeetsMinimum(decimal.NewFromInt(500)))
	require.False(t, applied.StillMeetsMinimum(decimal.RequireFromString("499.99")))
}
