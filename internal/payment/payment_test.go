package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/resilience"
)

func TestSandboxVerify(t *testing.T) {
	sb := payment.NewSandbox("key-secret")
	ctx := context.Background()
	order, err := sb.CreateOrder(ctx, payment.OrderRequest{Amount: 49000, Currency: "inr", Receipt: "local-1"})
	require.NoError(t, err)
	require.Equal(t, "INR", order.Currency)
	require.True(t, strings.HasPrefix(order.ID, "order_"))

	payID := payment.NewPaymentID()
	req := payment.VerifyRequest{PaymentID: payID, GatewayOrderID: order.ID, Signature: sb.Sign(order.ID, payID), LocalOrderID: "local-1"}
	ok, err := sb.Verify(ctx, req)
	require.NoError(t, err)
	require.True(t, ok)

	req.Signature = sb.Sign(order.ID, "pay_other")
	ok, err = sb.Verify(ctx, req)
	require.NoError(t, err)
	require.False(t, ok)

	req.GatewayOrderID = "order_unknown"
	req.Signature = sb.Sign("order_unknown", payID)
	ok, _ = sb.Verify(ctx, req)
	require.False(t, ok)

	_, err = sb.CreateOrder(ctx, payment.OrderRequest{Amount: 0, Currency: "INR", Receipt: "x"})
	require.Error(t, err)
}

func functionGateway(srv *httptest.Server) payment.FunctionGateway {
	return payment.FunctionGateway{
		HTTP: resilience.HTTPClient{
			Client:      srv.Client(),
			Breaker:     resilience.NewBreaker(10, 0.9, time.Second),
			MaxAttempts: 3,
			BaseBackoff: time.Millisecond,
			Target:      "payment-functions",
		},
		CreateOrderURL: srv.URL + "/create-order",
		VerifyURL:      srv.URL + "/verify",
		Token:          "fn-token",
	}
}

func TestFunctionGatewayCreateOrderNeverRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := functionGateway(srv).CreateOrder(context.Background(), payment.OrderRequest{Amount: 100, Currency: "INR", Receipt: "r"})
	require.Error(t, err)
	require.Equal(t, int32(1), calls.Load())
}

func TestFunctionGatewayAmountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer fn-token", r.Header.Get("Authorization"))
		var req payment.OrderRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "local-9", req.Receipt)
		_ = json.NewEncoder(w).Encode(payment.GatewayOrder{ID: "order_x", Amount: req.Amount - 1, Currency: req.Currency})
	}))
	defer srv.Close()

	_, err := functionGateway(srv).CreateOrder(context.Background(), payment.OrderRequest{Amount: 49000, Currency: "INR", Receipt: "local-9"})
	require.ErrorIs(t, err, payment.ErrAmountMismatch)
}

func TestFunctionGatewayVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req payment.VerifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_ = json.NewEncoder(w).Encode(map[string]bool{"verified": req.Signature == "good"})
	}))
	defer srv.Close()
	gw := functionGateway(srv)

	ok, err := gw.Verify(context.Background(), payment.VerifyRequest{PaymentID: "p", GatewayOrderID: "o", Signature: "good", LocalOrderID: "l"})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gw.Verify(context.Background(), payment.VerifyRequest{PaymentID: "p", GatewayOrderID: "o", Signature: "bad", LocalOrderID: "l"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCallbackOutcome(t *testing.T) {
	cases := []struct {
		body string
		want payment.Outcome
	}{
		{`{"payment_id":"pay_1","gateway_order_id":"order_1","signature":"s"}`, payment.OutcomeSuccess},
		{`{"error":{"code":2,"description":"Payment cancelled by user"}}`, payment.OutcomeCancelled},
		{`{"error":{"code":"BAD_REQUEST_ERROR","reason":"payment_cancelled"}}`, payment.OutcomeCancelled},
		{`{"error":{"code":"BAD_REQUEST_ERROR","description":"Card declined","reason":"payment_failed"}}`, payment.OutcomeFailed},
		{`{"error":{"code":0,"description":"Network error"}}`, payment.OutcomeFailed},
		{`{}`, payment.OutcomeFailed},
	}
	for _, tc := range cases {
		var cb payment.Callback
		require.NoError(t, json.Unmarshal([]byte(tc.body), &cb))
		require.Equal(t, tc.want, cb.Outcome(), tc.body)
	}

	var cb payment.Callback
	require.NoError(t, json.Unmarshal([]byte(`{"error":{"code":"X","description":"Card declined"}}`), &cb))
	require.Equal(t, "Card declined", cb.Description())
}
