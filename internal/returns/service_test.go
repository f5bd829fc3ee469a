package returns_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
	"github.com/noah-isme/storefront-checkout/internal/returns"
)

type memStore struct {
	mu   sync.Mutex
	reqs map[string]returns.Request
}

func (m *memStore) Insert(_ context.Context, r returns.Request) (returns.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reqs {
		if existing.OrderItemID == r.OrderItemID && existing.Status.Active() {
			return returns.Request{}, returns.ErrActiveExists
		}
	}
	r.ID = uuid.NewString()
	r.Status = returns.StatusPending
	m.reqs[r.ID] = r
	return r, nil
}

func (m *memStore) Get(_ context.Context, userID, id string) (returns.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok || r.UserID != userID {
		return returns.Request{}, returns.ErrNotFound
	}
	return r, nil
}

func (m *memStore) ActiveForItem(_ context.Context, itemID string) (returns.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reqs {
		if r.OrderItemID == itemID && r.Status.Active() {
			return r, nil
		}
	}
	return returns.Request{}, returns.ErrNotFound
}

func (m *memStore) ListForUser(_ context.Context, userID string) ([]returns.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []returns.Request{}
	for _, r := range m.reqs {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) CancelPending(_ context.Context, userID, id string) (returns.Request, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok || r.UserID != userID {
		return returns.Request{}, false, returns.ErrNotFound
	}
	if r.Status != returns.StatusPending {
		return returns.Request{}, false, nil
	}
	r.Status = returns.StatusCancelled
	m.reqs[id] = r
	return r, true, nil
}

func (m *memStore) setStatus(id string, s returns.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.reqs[id]
	r.Status = s
	m.reqs[id] = r
}

type topics struct {
	mu  sync.Mutex
	got []string
}

func (t *topics) Emit(_ context.Context, topic, aggregateID string, _ any) (events.Event, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.got = append(t.got, topic)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

type fixture struct {
	svc    *returns.Service
	store  *memStore
	orders *order.MemStore
	events *topics
	itemID string
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	orders := order.NewMemStore()
	o, err := orders.Create(context.Background(), order.New{
		UserID: "u1", PaymentMethod: pricing.MethodOnline, Status: order.StatusPlaced, PaymentStatus: order.PaymentPending,
		Items: []pricing.LineItem{{ProductID: "p1", Name: "Kurta", UnitPrice: decimal.NewFromInt(799), UnitMRP: decimal.NewFromInt(999), Quantity: 1}},
	})
	require.NoError(t, err)
	f := &fixture{
		store:  &memStore{reqs: map[string]returns.Request{}},
		orders: orders,
		events: &topics{},
		itemID: o.Items[0].ID,
		now:    time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC),
	}
	f.svc = &returns.Service{
		Store:  f.store,
		Items:  &order.Service{Store: orders},
		Events: f.events,
		Now:    func() time.Time { return f.now },
	}
	return f
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	appErr, ok := common.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}

func TestCreateRequiresDelivery(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "u1", returns.Input{OrderItemID: f.itemID, Reason: returns.ReasonDamaged})
	requireCode(t, err, "RETURN_NOT_DELIVERED")

	el, err := f.svc.Eligibility(context.Background(), "u1", f.itemID)
	require.NoError(t, err)
	require.False(t, el.Eligible)
	require.Nil(t, el.Deadline)
}

func TestCreateWithinWindow(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.orders.MarkDelivered(f.itemID, f.now.Add(-6*24*time.Hour)))

	el, err := f.svc.Eligibility(context.Background(), "u1", f.itemID)
	require.NoError(t, err)
	require.True(t, el.Eligible)
	require.Equal(t, f.now.Add(24*time.Hour), *el.Deadline)

	req, err := f.svc.Create(context.Background(), "u1", returns.Input{OrderItemID: f.itemID, Reason: returns.ReasonSizeIssue, ReasonDetails: "too small"})
	require.NoError(t, err)
	require.Equal(t, returns.StatusPending, req.Status)
	require.Equal(t, []string{events.TopicReturnRequested}, f.events.got)

	_, err = f.svc.Create(context.Background(), "u1", returns.Input{OrderItemID: f.itemID, Reason: returns.ReasonDamaged})
	requireCode(t, err, "RETURN_ALREADY_REQUESTED")
}

func TestCreateAfterWindow(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.orders.MarkDelivered(f.itemID, f.now.Add(-8*24*time.Hour)))

	_, err := f.svc.Create(context.Background(), "u1", returns.Input{OrderItemID: f.itemID, Reason: returns.ReasonChangedMind})
	requireCode(t, err, "RETURN_WINDOW_EXPIRED")

	el, err := f.svc.Eligibility(context.Background(), "u1", f.itemID)
	require.NoError(t, err)
	require.False(t, el.Eligible)
	require.NotNil(t, el.Deadline)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), "u1", returns.Input{OrderItemID: f.itemID, Reason: "bored"})
	requireCode(t, err, "VALIDATION_ERROR")

	_, err = f.svc.Create(context.Background(), "u1", returns.Input{OrderItemID: "nope", Reason: returns.ReasonDamaged})
	requireCode(t, err, "VALIDATION_ERROR")

	_, err = f.svc.Create(context.Background(), "u2", returns.Input{OrderItemID: f.itemID, Reason: returns.ReasonDamaged})
	requireCode(t, err, "NOT_FOUND")
}

func TestCancelOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.orders.MarkDelivered(f.itemID, f.now.Add(-time.Hour)))
	req, err := f.svc.Create(context.Background(), "u1", returns.Input{OrderItemID: f.itemID, Reason: returns.ReasonDefective})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), "u1", req.ID)
	require.NoError(t, err)
	require.Equal(t, returns.StatusCancelled, cancelled.Status)

	_, err = f.svc.Cancel(context.Background(), "u1", req.ID)
	requireCode(t, err, "RETURN_NOT_CANCELLABLE")

	// A cancelled request no longer blocks a new one.
	again, err := f.svc.Create(context.Background(), "u1", returns.Input{OrderItemID: f.itemID, Reason: returns.ReasonDefective})
	require.NoError(t, err)
	f.store.setStatus(again.ID, returns.StatusApproved)
	_, err = f.svc.Cancel(context.Background(), "u1", again.ID)
	requireCode(t, err, "RETURN_NOT_CANCELLABLE")

	require.Equal(t, []string{events.TopicReturnRequested, events.TopicReturnCancelled, events.TopicReturnRequested}, f.events.got)
}

func TestCreateHandler(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.orders.MarkDelivered(f.itemID, f.now))

	r := chi.NewRouter()
	r.Post("/returns", returns.Handler{Svc: f.svc}.Create)
	body := `{"order_item_id":"` + f.itemID + `","reason":"wrong_item"}`
	req := httptest.NewRequest(http.MethodPost, "/returns", strings.NewReader(body))
	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"pending"`)
}
