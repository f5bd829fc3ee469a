package payment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/noah-isme/storefront-checkout/internal/resilience"
)

// FunctionGateway reaches the order-creation and verification functions over
// HTTP. Neither call is idempotent on the gateway side, so each is attempted
// exactly once regardless of the client's MaxAttempts.
type FunctionGateway struct {
	HTTP           resilience.HTTPClient
	CreateOrderURL string
	VerifyURL      string
	Token          string
}

func (g FunctionGateway) client() resilience.HTTPClient {
	cl := g.HTTP
	cl.MaxAttempts = 1
	return cl
}

func (g FunctionGateway) headers() map[string]string {
	if g.Token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + g.Token}
}

// CreateOrder creates a gateway order and checks it echoes the requested amount.
func (g FunctionGateway) CreateOrder(ctx context.Context, req OrderRequest) (GatewayOrder, error) {
	if err := req.validate(); err != nil {
		return GatewayOrder{}, err
	}
	start := time.Now()
	var out GatewayOrder
	err := g.client().DoJSON(ctx, http.MethodPost, g.CreateOrderURL, g.headers(), req, &out)
	if err == nil {
		err = checkOrder(req, out)
	}
	recordLatency(ctx, "create_order", start, err)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("payment: create order: %w", err)
	}
	return out, nil
}

// Verify asks the verification function whether the signature is genuine.
func (g FunctionGateway) Verify(ctx context.Context, req VerifyRequest) (bool, error) {
	if err := req.validate(); err != nil {
		return false, err
	}
	start := time.Now()
	var out struct {
		Verified bool `json:"verified"`
	}
	err := g.client().DoJSON(ctx, http.MethodPost, g.VerifyURL, g.headers(), req, &out)
	recordLatency(ctx, "verify", start, err)
	if err != nil {
		return false, fmt.Errorf("payment: verify: %w", err)
	}
	return out.Verified, nil
}
