// Package appstate builds the per-user application state the app refreshes
// after sign-in and after checkout.
package appstate

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/storefront-checkout/internal/address"
	"github.com/noah-isme/storefront-checkout/internal/common"
)

// State is the explicit application state object.
type State struct {
	UserID           string    `json:"user_id,omitempty"`
	Authenticated    bool      `json:"authenticated"`
	CartCount        int       `json:"cart_count"`
	DefaultAddressID string    `json:"default_address_id,omitempty"`
	RefreshedAt      time.Time `json:"refreshed_at"`
}

// CartCounter returns the number of cart lines.
type CartCounter interface {
	Count(ctx context.Context, userID string) (int, error)
}

// DefaultAddresses returns the user's default address.
type DefaultAddresses interface {
	GetDefault(ctx context.Context, userID string) (address.Address, error)
}

// Loader assembles State from the cart and address services.
type Loader struct {
	Cart      CartCounter
	Addresses DefaultAddresses
	Now       func() time.Time
}

// Load returns the state for userID. An empty userID yields the signed-out state.
func (l *Loader) Load(ctx context.Context, userID string) (State, error) {
	st := State{RefreshedAt: l.now()}
	if userID == "" {
		return st, nil
	}
	st.UserID, st.Authenticated = userID, true

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := l.Cart.Count(gctx, userID)
		st.CartCount = n
		return err
	})
	g.Go(func() error {
		a, err := l.Addresses.GetDefault(gctx, userID)
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		st.DefaultAddressID = a.ID
		return nil
	})
	if err := g.Wait(); err != nil {
		return State{}, err
	}
	return st, nil
}

func (l *Loader) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

// Handler serves GET /api/v1/me/state.
type Handler struct {
	Loader *Loader
}

func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserID(r.Context())
	st, err := h.Loader.Load(r.Context(), userID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": st})
}
