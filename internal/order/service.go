package order

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Service wraps Store with request-level errors.
type Service struct {
	Store Store
}

// Place writes an order and its items.
func (s *Service) Place(ctx context.Context, n New) (Order, error) {
	if len(n.Items) == 0 {
		return Order{}, common.Validation("order has no items")
	}
	o, err := s.Store.Create(ctx, n)
	if err != nil {
		return Order{}, common.Upstream(err)
	}
	return o, nil
}

// AttachGatewayOrder links a pending order to its gateway order.
func (s *Service) AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error {
	if err := s.Store.AttachGatewayOrder(ctx, orderID, gatewayOrderID); err != nil {
		return mapErr(err)
	}
	return nil
}

// List returns a page of the user's orders.
func (s *Service) List(ctx context.Context, userID string, page, perPage int) ([]Order, int64, error) {
	list, total, err := s.Store.List(ctx, userID, perPage, common.Offset(page, perPage))
	if err != nil {
		return nil, 0, common.Upstream(err)
	}
	return list, total, nil
}

// Get returns one of the user's orders with items.
func (s *Service) Get(ctx context.Context, userID, id string) (Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Order{}, common.NotFound("order")
	}
	o, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return Order{}, mapErr(err)
	}
	return o, nil
}

// Item returns one of the user's order items.
func (s *Service) Item(ctx context.Context, userID, itemID string) (Item, error) {
	if _, err := uuid.Parse(itemID); err != nil {
		return Item{}, common.NotFound("order item")
	}
	it, err := s.Store.Item(ctx, userID, itemID)
	if err != nil {
		return Item{}, mapErr(err)
	}
	return it, nil
}

func mapErr(err error) error {
	if errors.Is(err, ErrNotFound) {
		return common.NotFound("order")
	}
	return common.Upstream(err)
}
