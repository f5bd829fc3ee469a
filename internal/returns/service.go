package returns

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/obs"
	"github.com/noah-isme/storefront-checkout/internal/order"
)

// DefaultWindow is how long after delivery a return may be requested.
const DefaultWindow = 7 * 24 * time.Hour

// Items looks up an order item owned by a user.
type Items interface {
	Item(ctx context.Context, userID, itemID string) (order.Item, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Contacts resolves the phone number notifications go to.
type Contacts interface {
	Me(ctx context.Context, userID string) (auth.User, error)
}

// Input is the body of a return request.
type Input struct {
	OrderItemID   string `json:"order_item_id" validate:"required,uuid"`
	Reason        Reason `json:"reason" validate:"required"`
	ReasonDetails string `json:"reason_details" validate:"max=500"`
}

// Service creates, cancels and lists return requests.
type Service struct {
	Store  Store
	Items  Items
	Events Emitter
	// Contacts is optional; without it return events carry no phone.
	Contacts Contacts
	Window   time.Duration
	Now      func() time.Time
	Logger   zerolog.Logger
	Counter  *prometheus.CounterVec
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) window() time.Duration {
	if s.Window > 0 {
		return s.Window
	}
	return DefaultWindow
}

// Eligibility reports whether a return can be requested for the item now.
func (s *Service) Eligibility(ctx context.Context, userID, itemID string) (Eligibility, error) {
	it, err := s.Items.Item(ctx, userID, itemID)
	if err != nil {
		return Eligibility{}, err
	}
	out := Eligibility{OrderItemID: it.ID}
	if !it.Delivered() {
		out.Reason = "item has not been delivered yet"
		return out, nil
	}
	deadline := it.DeliveredAt.Add(s.window())
	out.Deadline = &deadline
	active, err := s.Store.ActiveForItem(ctx, it.ID)
	switch {
	case err == nil:
		out.Active = &active
		out.Reason = "a return is already in progress for this item"
		return out, nil
	case !errors.Is(err, ErrNotFound):
		return Eligibility{}, common.Upstream(err)
	}
	if s.now().After(deadline) {
		out.Reason = "the return window has closed"
		return out, nil
	}
	out.Eligible = true
	return out, nil
}

// Create files a return request for a delivered item.
func (s *Service) Create(ctx context.Context, userID string, in Input) (Request, error) {
	if err := common.ValidateStruct(in); err != nil {
		return Request{}, err
	}
	if !in.Reason.Valid() {
		return Request{}, common.Validation("unknown return reason").
			WithDetails(map[string]any{"reasons": Reasons})
	}
	it, err := s.Items.Item(ctx, userID, in.OrderItemID)
	if err != nil {
		return Request{}, err
	}
	if !it.Delivered() {
		obs.Inc(s.Counter, "create", "not_delivered")
		return Request{}, mapErr(ErrNotDelivered)
	}
	if _, err := s.Store.ActiveForItem(ctx, it.ID); err == nil {
		obs.Inc(s.Counter, "create", "active_exists")
		return Request{}, mapErr(ErrActiveExists)
	} else if !errors.Is(err, ErrNotFound) {
		return Request{}, common.Upstream(err)
	}
	if s.now().After(it.DeliveredAt.Add(s.window())) {
		obs.Inc(s.Counter, "create", "window_expired")
		return Request{}, mapErr(ErrWindowExpired)
	}

	req, err := s.Store.Insert(ctx, Request{
		OrderItemID: it.ID, OrderID: it.OrderID, UserID: userID,
		Reason: in.Reason, ReasonDetails: in.ReasonDetails,
	})
	if err != nil {
		obs.Inc(s.Counter, "create", "error")
		return Request{}, mapErr(err)
	}
	obs.Inc(s.Counter, "create", "ok")
	s.emit(ctx, events.TopicReturnRequested, req)
	return req, nil
}

// Cancel withdraws a pending request.
func (s *Service) Cancel(ctx context.Context, userID, id string) (Request, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Request{}, common.NotFound("return request")
	}
	req, ok, err := s.Store.CancelPending(ctx, userID, id)
	if err != nil {
		return Request{}, mapErr(err)
	}
	if !ok {
		obs.Inc(s.Counter, "cancel", "not_pending")
		return Request{}, mapErr(ErrNotPending)
	}
	obs.Inc(s.Counter, "cancel", "ok")
	s.emit(ctx, events.TopicReturnCancelled, req)
	return req, nil
}

// List returns the user's return requests, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Request, error) {
	list, err := s.Store.ListForUser(ctx, userID)
	if err != nil {
		return nil, common.Upstream(err)
	}
	return list, nil
}

func (s *Service) emit(ctx context.Context, topic string, req Request) {
	if s.Events == nil {
		return
	}
	payload := map[string]any{
		"return_id": req.ID, "order_id": req.OrderID, "order_item_id": req.OrderItemID,
		"user_id": req.UserID, "reason": req.Reason,
	}
	if s.Contacts != nil {
		if u, err := s.Contacts.Me(ctx, req.UserID); err == nil {
			payload["phone"] = u.Phone
		}
	}
	if _, err := s.Events.Emit(ctx, topic, req.ID, payload); err != nil {
		s.Logger.Warn().Err(err).Str("topic", topic).Str("return_id", req.ID).Msg("return event not delivered")
	}
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return common.NotFound("return request")
	case errors.Is(err, ErrActiveExists):
		return common.Unavailable("RETURN_ALREADY_REQUESTED", "a return is already in progress for this item", err)
	case errors.Is(err, ErrNotPending):
		return common.Unavailable("RETURN_NOT_CANCELLABLE", "only pending returns can be cancelled", err)
	case errors.Is(err, ErrNotDelivered):
		return common.NewAppError("RETURN_NOT_DELIVERED", "item has not been delivered yet", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrWindowExpired):
		return common.NewAppError("RETURN_WINDOW_EXPIRED", "the return window has closed", http.StatusUnprocessableEntity, err)
	}
	return common.Upstream(err)
}
