package shipping

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/noah-isme/storefront-checkout/internal/resilience"
)

// FunctionClient calls the remote serviceability function.
type FunctionClient struct {
	HTTP   resilience.HTTPClient
	URL    string
	APIKey string
}

// Check posts the request and decodes the answer. The lookup is read-only, so
// the HTTP client may retry it.
func (c FunctionClient) Check(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(c.URL) == "" {
		return Result{}, fmt.Errorf("shipping: serviceability url not configured")
	}
	headers := map[string]string{}
	if c.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.APIKey
	}
	var out Result
	if err := c.HTTP.DoJSON(ctx, http.MethodPost, c.URL, headers, req, &out); err != nil {
		return Result{}, fmt.Errorf("shipping: serviceability: %w", err)
	}
	return out, nil
}

// MockClient serves development. Pincodes in Unserviceable are rejected and
// those in NoCOD are prepaid only; everything else ships in three days with COD.
type MockClient struct {
	Unserviceable map[string]bool
	NoCOD         map[string]bool
	Now           func() time.Time
}

// Check returns a canned answer.
func (m MockClient) Check(_ context.Context, req Request) (Result, error) {
	if m.Unserviceable[req.Pincode] {
		return Result{}, nil
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	return Result{
		Serviceable: true,
		COD:         !m.NoCOD[req.Pincode],
		DisplayDate: now().AddDate(0, 0, 3).Format("Mon, 02 Jan"),
	}, nil
}
