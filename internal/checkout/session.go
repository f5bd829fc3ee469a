// Package checkout orchestrates a checkout session from loading the cart (or a
// buy-now item) through order placement and payment verification.
package checkout

import (
	"time"

	"github.com/noah-isme/storefront-checkout/internal/address"
	"github.com/noah-isme/storefront-checkout/internal/appstate"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
	"github.com/noah-isme/storefront-checkout/internal/shipping"
)

// Mode says where the session's items come from.
type Mode string

const (
	ModeCart   Mode = "cart"
	ModeBuyNow Mode = "buy_now"
)

// State is the checkout screen state.
type State string

const (
	StateLoading          State = "loading"
	StateReady            State = "ready"
	StateCODSubmitting    State = "cod_submitting"
	StateOnlineSubmitting State = "online_submitting"
	StateVerifying        State = "verifying"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Editable reports whether selections may change in this state.
func (s State) Editable() bool {
	return s == StateReady || s == StateFailed
}

// InFlight reports whether a submission owns the session.
func (s State) InFlight() bool {
	return s == StateCODSubmitting || s == StateOnlineSubmitting || s == StateVerifying
}

// Failure is the last user-facing failure of a submission.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PaymentOptions prefill the gateway's hosted checkout on the device.
type PaymentOptions struct {
	Key            string          `json:"key"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	GatewayOrderID string          `json:"order_id"`
	Prefill        Prefill         `json:"prefill"`
	ReadOnly       map[string]bool `json:"readonly"`
}

// Prefill holds the contact fields shown read-only in the hosted checkout.
type Prefill struct {
	Name    string `json:"name,omitempty"`
	Contact string `json:"contact,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Session is the persisted checkout state.
type Session struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	Mode            Mode                  `json:"mode"`
	State           State                 `json:"state"`
	Items           []pricing.LineItem    `json:"items"`
	Address         *address.Address      `json:"address,omitempty"`
	Method          pricing.PaymentMethod `json:"payment_method,omitempty"`
	Coupon          *coupon.Applied       `json:"coupon,omitempty"`
	CODAllowed      bool                  `json:"cod_allowed"`
	CODReason       string                `json:"cod_reason,omitempty"`
	Delivery        *shipping.Result      `json:"delivery,omitempty"`
	ActiveRequestID string                `json:"active_request_id,omitempty"`
	OrderID         string                `json:"order_id,omitempty"`
	GatewayOrderID  string                `json:"gateway_order_id,omitempty"`
	Payment         *PaymentOptions       `json:"payment,omitempty"`
	Message         string                `json:"message,omitempty"`
	Failure         *Failure              `json:"failure,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// View is what the checkout screen renders.
type View struct {
	Session
	Bill      pricing.Bill    `json:"bill"`
	CanSubmit bool            `json:"can_submit"`
	Blocker   string          `json:"submit_blocker,omitempty"`
	AppState  *appstate.State `json:"app_state,omitempty"`
}

// inStock returns the items that count towards the bill.
func (s *Session) inStock() []pricing.LineItem {
	out := make([]pricing.LineItem, 0, len(s.Items))
	for _, it := range s.Items {
		if it.InStock() && it.Quantity > 0 {
			out = append(out, it)
		}
	}
	return out
}

func (s *Session) terms() *pricing.CouponTerms {
	if s.Coupon == nil {
		return nil
	}
	t := s.Coupon.Terms
	return &t
}

// bill recomputes the bill from scratch. It is never stored.
func (s *Session) bill(policy pricing.Policy) pricing.Bill {
	return pricing.Compute(s.Items, s.Method, s.terms(), policy, pricing.Options{InStockOnly: true})
}

// preDiscountTotal is the selling total a coupon is validated against.
func (s *Session) preDiscountTotal(policy pricing.Policy) pricing.Bill {
	return pricing.Compute(s.Items, s.Method, nil, policy, pricing.Options{InStockOnly: true})
}

// blocker returns why submit is disabled, or nil.
func (s *Session) blocker() error {
	switch {
	case !s.State.Editable():
		return errNotEditable(s.State)
	case len(s.inStock()) == 0:
		return errOutOfStock()
	case s.Address == nil:
		return errNoAddress()
	case s.Delivery != nil && !s.Delivery.Serviceable:
		return errUnserviceable()
	case s.Method == "":
		return errNoMethod()
	case s.Method == pricing.MethodCOD && !s.CODAllowed:
		return codUnavailable(s.CODReason)
	}
	return nil
}

func (s *Session) view(policy pricing.Policy) View {
	v := View{Session: *s, Bill: s.bill(policy)}
	if err := s.blocker(); err != nil {
		v.Blocker = err.Error()
	} else {
		v.CanSubmit = true
	}
	return v
}

func (s Session) phone() string {
	if s.Address == nil {
		return ""
	}
	return s.Address.Phone
}
