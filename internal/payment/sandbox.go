package payment

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

// Sandbox is an in-process gateway for development and tests. Signatures are
// HMAC-SHA256 over "order_id|payment_id" keyed with KeySecret.
type Sandbox struct {
	KeySecret string

	mu     sync.Mutex
	orders map[string]GatewayOrder
}

// NewSandbox returns a sandbox gateway.
func NewSandbox(secret string) *Sandbox {
	return &Sandbox{KeySecret: secret, orders: map[string]GatewayOrder{}}
}

// CreateOrder records and returns a new sandbox order.
func (s *Sandbox) CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error) {
	start := time.Now()
	if err := req.validate(); err != nil {
		recordLatency(ctx, "create_order", start, err)
		return GatewayOrder{}, err
	}
	o := GatewayOrder{ID: "order_" + randomID(), Amount: req.Amount, Currency: strings.ToUpper(req.Currency)}
	s.mu.Lock()
	if s.orders == nil {
		s.orders = map[string]GatewayOrder{}
	}
	s.orders[o.ID] = o
	s.mu.Unlock()
	recordLatency(ctx, "create_order", start, nil)
	return o, nil
}

// Verify checks the signature for a known order.
func (s *Sandbox) Verify(ctx context.Context, req VerifyRequest) (bool, error) {
	start := time.Now()
	if err := req.validate(); err != nil {
		return false, err
	}
	s.mu.Lock()
	_, known := s.orders[req.GatewayOrderID]
	s.mu.Unlock()
	expected := s.Sign(req.GatewayOrderID, req.PaymentID)
	ok := known && expected != "" && hmac.Equal([]byte(expected), []byte(strings.TrimSpace(req.Signature)))
	recordLatency(ctx, "verify", start, nil)
	return ok, nil
}

// Sign computes the signature the hosted checkout would return.
func (s *Sandbox) Sign(gatewayOrderID, paymentID string) string {
	key := strings.TrimSpace(s.KeySecret)
	if key == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// NewPaymentID mints a sandbox payment id.
func NewPaymentID() string { return "pay_" + randomID() }

func randomID() string {
	buf := make([]byte, 7)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
