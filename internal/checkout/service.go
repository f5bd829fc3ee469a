package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/storefront-checkout/internal/address"
	"github.com/noah-isme/storefront-checkout/internal/appstate"
	"github.com/noah-isme/storefront-checkout/internal/auth"
	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/coupon"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/lock"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/payment"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
	"github.com/noah-isme/storefront-checkout/internal/shipping"
)

// Addresses reads the user's saved addresses.
type Addresses interface {
	GetDefault(ctx context.Context, userID string) (address.Address, error)
	Get(ctx context.Context, userID, id string) (address.Address, error)
}

// Cart reads and clears the persisted cart.
type Cart interface {
	Items(ctx context.Context, userID string) ([]pricing.LineItem, error)
	Clear(ctx context.Context, userID string) error
}

// Catalog builds the single item of a buy-now checkout.
type Catalog interface {
	LineItemFor(ctx context.Context, productID, variantID string, quantity int) (pricing.LineItem, error)
}

// Serviceability answers delivery and COD questions for a pincode.
type Serviceability interface {
	CheckItems(ctx context.Context, pincode string, items []pricing.LineItem) (shipping.Result, error)
}

// Coupons validates coupons and records their usage.
type Coupons interface {
	Validate(ctx context.Context, code string, orderTotal decimal.Decimal) (coupon.Applied, error)
	RecordUsage(ctx context.Context, applied coupon.Applied, userID, orderID string, couponDiscount decimal.Decimal) error
}

// Orders writes orders.
type Orders interface {
	Place(ctx context.Context, n order.New) (order.Order, error)
	AttachGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) error
}

// Contacts returns the user's profile for payment prefill.
type Contacts interface {
	Me(ctx context.Context, userID string) (auth.User, error)
}

// Emitter publishes domain events.
type Emitter interface {
	Emit(ctx context.Context, topic, aggregateID string, payload any) (events.Event, error)
}

// Locker serialises work on one session across replicas.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// StateLoader refreshes the application state after completion.
type StateLoader interface {
	Load(ctx context.Context, userID string) (appstate.State, error)
}

// Service runs checkout sessions.
type Service struct {
	Sessions       SessionStore
	Locks          Locker
	Addresses      Addresses
	Cart           Cart
	Catalog        Catalog
	Serviceability Serviceability
	Coupons        Coupons
	Orders         Orders
	Gateway        payment.Gateway
	Contacts       Contacts
	Events         Emitter
	AppState       StateLoader

	Policy        pricing.Policy
	Currency      string
	GatewayKey    string
	MerchantName  string
	LockTTL       time.Duration
	SubmitTimeout time.Duration

	Now         func() time.Time
	NewID       func() string
	Logger      zerolog.Logger
	Submissions *prometheus.CounterVec
	Callbacks   *prometheus.CounterVec
	Verifies    *prometheus.CounterVec
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

// StartInput opens a session.
type StartInput struct {
	Mode      Mode   `json:"mode" validate:"required,oneof=cart buy_now"`
	ProductID string `json:"product_id" validate:"omitempty,uuid"`
	VariantID string `json:"variant_id" validate:"omitempty,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
}

// Start loads the default address and line items concurrently, evaluates COD
// and stores a ready session. Nothing is stored when loading fails.
func (s *Service) Start(ctx context.Context, userID string, in StartInput) (View, error) {
	if err := common.ValidateStruct(in); err != nil {
		return View{}, err
	}
	if in.Mode == ModeBuyNow && in.ProductID == "" {
		return View{}, common.Validation("product_id is required for buy now")
	}
	sess := Session{ID: s.newID(), UserID: userID, Mode: in.Mode, State: StateLoading, CreatedAt: s.now()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a, err := s.Addresses.GetDefault(gctx, userID)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("default address: %w", err)
		}
		sess.Address = &a
		return nil
	})
	g.Go(func() error {
		items, err := s.loadItems(gctx, userID, in)
		if err != nil {
			return err
		}
		sess.Items = items
		return nil
	})
	if err := g.Wait(); err != nil {
		var appErr *common.AppError
		if errors.As(err, &appErr) && appErr.HTTPStatus < http.StatusInternalServerError {
			return View{}, err
		}
		s.Logger.Error().Err(err).Str("user_id", userID).Str("mode", string(in.Mode)).Msg("checkout load failed")
		return View{}, errLoad(err)
	}

	s.evaluateCOD(ctx, &sess)
	sess.State = StateReady
	if err := s.save(ctx, &sess); err != nil {
		return View{}, common.Upstream(err)
	}
	return sess.view(s.Policy), nil
}

func (s *Service) loadItems(ctx context.Context, userID string, in StartInput) ([]pricing.LineItem, error) {
	if in.Mode == ModeCart {
		items, err := s.Cart.Items(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("cart items: %w", err)
		}
		return items, nil
	}
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	li, err := s.Catalog.LineItemFor(ctx, in.ProductID, in.VariantID, qty)
	if err != nil {
		return nil, err
	}
	li.Quantity = pricing.ClampQuantity(qty, li.Stock)
	return []pricing.LineItem{li}, nil
}

// evaluateCOD decides whether cash on delivery is offered. Every item must
// allow it and the pincode must be serviceable with COD. A COD selection that
// is no longer allowed is dropped.
func (s *Service) evaluateCOD(ctx context.Context, sess *Session) {
	sess.CODAllowed, sess.CODReason, sess.Delivery = false, "", nil
	defer func() {
		if sess.Method == pricing.MethodCOD && !sess.CODAllowed {
			sess.Method = ""
			sess.Message = "Cash on delivery is no longer available, please choose another payment method"
		}
	}()
	if sess.Address == nil {
		sess.CODReason = "select a delivery address to check cash on delivery"
		return
	}
	items := sess.inStock()
	if len(items) == 0 {
		sess.CODReason = "no items are in stock"
		return
	}
	res, err := s.Serviceability.CheckItems(ctx, sess.Address.Pincode, items)
	if err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sess.ID).Str("pincode", sess.Address.Pincode).Msg("serviceability unavailable")
		sess.CODReason = "could not confirm cash on delivery for this pincode"
		return
	}
	sess.Delivery = &res
	for _, it := range items {
		if !it.CODEligible() {
			sess.CODReason = "cash on delivery is not available for one or more items"
			return
		}
	}
	switch {
	case !res.Serviceable:
		sess.CODReason = "we do not deliver to this pincode yet"
	case !res.COD:
		sess.CODReason = "cash on delivery is not available for this pincode"
	default:
		sess.CODAllowed = true
	}
}

// Get returns the session view.
func (s *Service) Get(ctx context.Context, userID, sessionID string) (View, error) {
	sess, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return View{}, err
	}
	return sess.view(s.Policy), nil
}

// SelectAddress switches the delivery address and re-evaluates COD.
func (s *Service) SelectAddress(ctx context.Context, userID, sessionID, addressID string) (View, error) {
	return s.edit(ctx, userID, sessionID, func(ctx context.Context, sess *Session) error {
		a, err := s.Addresses.Get(ctx, userID, addressID)
		if err != nil {
			return err
		}
		sess.Address = &a
		s.evaluateCOD(ctx, sess)
		return nil
	})
}

// SelectPaymentMethod picks COD or ONLINE.
func (s *Service) SelectPaymentMethod(ctx context.Context, userID, sessionID, method string) (View, error) {
	m, err := pricing.ParsePaymentMethod(method)
	if err != nil {
		return View{}, common.Validation("payment method must be COD or ONLINE")
	}
	return s.edit(ctx, userID, sessionID, func(_ context.Context, sess *Session) error {
		if m == pricing.MethodCOD && !sess.CODAllowed {
			return codUnavailable(sess.CODReason)
		}
		sess.Method = m
		return nil
	})
}

// ApplyCoupon validates code against the pre-discount total. A rejected code
// leaves the session untouched.
func (s *Service) ApplyCoupon(ctx context.Context, userID, sessionID, code string) (View, error) {
	if strings.TrimSpace(code) == "" {
		return View{}, common.Validation("coupon code is required")
	}
	return s.edit(ctx, userID, sessionID, func(ctx context.Context, sess *Session) error {
		applied, err := s.Coupons.Validate(ctx, code, sess.preDiscountTotal(s.Policy).TotalSelling)
		if err != nil {
			return err
		}
		sess.Coupon = &applied
		return nil
	})
}

// RemoveCoupon drops the applied coupon.
func (s *Service) RemoveCoupon(ctx context.Context, userID, sessionID string) (View, error) {
	return s.edit(ctx, userID, sessionID, func(_ context.Context, sess *Session) error {
		sess.Coupon = nil
		return nil
	})
}

// UpdateQuantity changes the buy-now quantity, clamped to stock. The
// persisted cart is never touched.
func (s *Service) UpdateQuantity(ctx context.Context, userID, sessionID string, quantity int) (View, error) {
	if quantity < 1 {
		return View{}, common.Validation("quantity must be at least 1")
	}
	return s.edit(ctx, userID, sessionID, func(_ context.Context, sess *Session) error {
		if sess.Mode != ModeBuyNow || len(sess.Items) != 1 {
			return common.Validation("quantity can only be changed for buy now")
		}
		sess.Items[0].Quantity = pricing.ClampQuantity(quantity, sess.Items[0].Stock)
		if sess.Coupon != nil && !sess.Coupon.StillMeetsMinimum(sess.preDiscountTotal(s.Policy).TotalSelling) {
			sess.Message = fmt.Sprintf("Coupon %s was removed: the order no longer meets its minimum value", sess.Coupon.Terms.Code)
			sess.Coupon = nil
		}
		return nil
	})
}

// Abandon deletes the session. Late results for it are discarded.
func (s *Service) Abandon(ctx context.Context, userID, sessionID string) error {
	return s.withLock(ctx, sessionID, func(ctx context.Context) error {
		if _, err := s.load(ctx, userID, sessionID); err != nil {
			return err
		}
		if err := s.Sessions.Delete(ctx, sessionID); err != nil {
			return common.Upstream(err)
		}
		return nil
	})
}

// edit applies fn to an editable session under the session lock. fn errors
// leave the stored session unchanged.
func (s *Service) edit(ctx context.Context, userID, sessionID string, fn func(context.Context, *Session) error) (View, error) {
	var out View
	err := s.withLock(ctx, sessionID, func(ctx context.Context) error {
		sess, err := s.load(ctx, userID, sessionID)
		if err != nil {
			return err
		}
		if !sess.State.Editable() {
			return errNotEditable(sess.State)
		}
		sess.Message = ""
		if err := fn(ctx, &sess); err != nil {
			return err
		}
		if sess.State == StateFailed {
			sess.State, sess.Failure = StateReady, nil
		}
		if err := s.save(ctx, &sess); err != nil {
			return common.Upstream(err)
		}
		out = sess.view(s.Policy)
		return nil
	})
	return out, err
}

func (s *Service) withLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if _, err := uuid.Parse(sessionID); err != nil {
		return errGone()
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	err := s.Locks.WithLock(ctx, "checkout:"+sessionID, ttl, fn)
	if errors.Is(err, lock.ErrLockBusy) {
		return errBusy(err)
	}
	return err
}

func (s *Service) load(ctx context.Context, userID, sessionID string) (Session, error) {
	sess, err := s.Sessions.Get(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Session{}, errGone()
	}
	if err != nil {
		return Session{}, common.Upstream(err)
	}
	if sess.UserID != userID {
		return Session{}, errGone()
	}
	return sess, nil
}

func (s *Service) save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now()
	return s.Sessions.Save(ctx, *sess)
}

func isNotFound(err error) bool {
	var appErr *common.AppError
	return errors.As(err, &appErr) && appErr.HTTPStatus == http.StatusNotFound
}
