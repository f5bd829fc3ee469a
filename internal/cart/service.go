// Package cart manages the persisted cart. Mutations follow a command shape:
// compute the proposed state locally, issue the remote command, and on failure
// return the freshly fetched authoritative cart alongside the error.
package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

// ErrItemNotFound is returned when a cart line does not exist for the user.
var ErrItemNotFound = errors.New("cart: item not found")

// Item is a cart line as read from cart_view.
type Item struct {
	CartItemID string `json:"cart_item_id"`
	pricing.LineItem
}

// View is the cart screen payload. Delivery is waived on the cart-only bill.
type View struct {
	Items []Item       `json:"items"`
	Bill  pricing.Bill `json:"bill"`
}

// Catalog synthesises line items for products not yet in the cart.
type Catalog interface {
	LineItemFor(ctx context.Context, productID, variantID string, quantity int) (pricing.LineItem, error)
}

// CommandError carries the authoritative cart fetched after a failed command.
type CommandError struct {
	Err  error
	Cart *View
}

func (e *CommandError) Error() string { return e.Err.Error() }
func (e *CommandError) Unwrap() error { return e.Err }

// Service implements cart operations.
type Service struct {
	Store   Store
	Catalog Catalog
	Policy  pricing.Policy
	Logger  zerolog.Logger
}

// AddInput is the payload for adding a product to the cart.
type AddInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	VariantID string `json:"variant_id" validate:"omitempty,uuid"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

// View returns the cart with a delivery-waived bill.
func (s *Service) View(ctx context.Context, userID string) (View, error) {
	items, err := s.Store.Items(ctx, userID)
	if err != nil {
		return View{}, common.Upstream(err)
	}
	return s.view(items), nil
}

func (s *Service) view(items []Item) View {
	if items == nil {
		items = []Item{}
	}
	return View{Items: items, Bill: pricing.Compute(LineItems(items), "", nil, s.Policy, pricing.Options{WaiveDelivery: true})}
}

// LineItems strips cart ids.
func LineItems(items []Item) []pricing.LineItem {
	out := make([]pricing.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.LineItem)
	}
	return out
}

// Items returns the cart's line items for checkout.
func (s *Service) Items(ctx context.Context, userID string) ([]pricing.LineItem, error) {
	items, err := s.Store.Items(ctx, userID)
	if err != nil {
		return nil, err
	}
	return LineItems(items), nil
}

// Add puts quantity more of a product into the cart.
func (s *Service) Add(ctx context.Context, userID string, in AddInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	current, err := s.Store.Items(ctx, userID)
	if err != nil {
		return View{}, common.Upstream(err)
	}
	target := in.Quantity
	stock := 0
	if existing, ok := findLine(current, in.ProductID, in.VariantID); ok {
		target += existing.Quantity
		stock = existing.Stock
	} else {
		li, err := s.Catalog.LineItemFor(ctx, in.ProductID, in.VariantID, in.Quantity)
		if err != nil {
			return View{}, err
		}
		stock = li.Stock
	}
	if err := checkQuantity(target, stock); err != nil {
		return View{}, err
	}
	return s.command(ctx, userID, func(ctx context.Context) error {
		return s.Store.SetLine(ctx, userID, in.ProductID, in.VariantID, target)
	})
}

// UpdateQuantity sets an absolute quantity on one line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, cartItemID string, quantity int) (View, error) {
	current, err := s.Store.Items(ctx, userID)
	if err != nil {
		return View{}, common.Upstream(err)
	}
	line, ok := findByID(current, cartItemID)
	if !ok {
		return View{}, common.NotFound("cart item")
	}
	if err := checkQuantity(quantity, line.Stock); err != nil {
		return View{}, err
	}
	return s.command(ctx, userID, func(ctx context.Context) error {
		return s.Store.SetQuantity(ctx, userID, cartItemID, quantity)
	})
}

// Remove deletes one line.
func (s *Service) Remove(ctx context.Context, userID, cartItemID string) (View, error) {
	return s.command(ctx, userID, func(ctx context.Context) error {
		return s.Store.Remove(ctx, userID, cartItemID)
	})
}

// Clear empties the cart.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.Store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("cart: clear: %w", err)
	}
	return nil
}

// Count returns the badge count for the cart icon.
func (s *Service) Count(ctx context.Context, userID string) (int, error) {
	n, err := s.Store.Count(ctx, userID)
	if err != nil {
		return 0, common.Upstream(err)
	}
	return n, nil
}

func (s *Service) command(ctx context.Context, userID string, cmd func(context.Context) error) (View, error) {
	cmdErr := cmd(ctx)
	items, err := s.Store.Items(ctx, userID)
	if cmdErr == nil {
		if err != nil {
			return View{}, common.Upstream(err)
		}
		return s.view(items), nil
	}

	var appErr *common.AppError
	if errors.Is(cmdErr, ErrItemNotFound) {
		appErr = common.NotFound("cart item")
	} else {
		s.Logger.Warn().Err(cmdErr).Str("user_id", userID).Msg("cart_command_failed")
		appErr = common.Upstream(cmdErr)
	}
	if err != nil {
		return View{}, appErr
	}
	v := s.view(items)
	appErr.WithDetails(map[string]any{"cart": v})
	return v, &CommandError{Err: appErr, Cart: &v}
}

func checkQuantity(q, stock int) error {
	if q < 1 {
		return common.Validation("quantity must be at least 1")
	}
	if stock <= 0 {
		return common.NewAppError("OUT_OF_STOCK", "this item is out of stock", http.StatusConflict, nil)
	}
	if q > stock {
		return common.NewAppError("OUT_OF_STOCK", fmt.Sprintf("only %d left in stock", stock), http.StatusConflict, nil).
			WithDetails(map[string]int{"stock": stock})
	}
	return nil
}

func findLine(items []Item, productID, variantID string) (Item, bool) {
	for _, it := range items {
		if it.ProductID == productID && it.VariantID == variantID {
			return it, true
		}
	}
	return Item{}, false
}

func findByID(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.CartItemID == id {
			return it, true
		}
	}
	return Item{}, false
}
