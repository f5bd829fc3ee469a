package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/order"
	"github.com/noah-isme/storefront-checkout/internal/pricing"
)

func newOrder(userID string) order.New {
	items := []pricing.LineItem{{
		ProductID: "p1", Name: "Shirt", UnitPrice: decimal.NewFromInt(300), UnitMRP: decimal.NewFromInt(400),
		Quantity: 2, Stock: 5,
	}}
	return order.New{
		UserID: userID, PaymentMethod: pricing.MethodCOD, Status: order.StatusPlaced, PaymentStatus: order.PaymentPending,
		Bill:  pricing.Compute(items, pricing.MethodCOD, nil, pricing.DefaultPolicy(), pricing.Options{}),
		Items: items, Currency: "INR",
	}
}

func TestPlaceSnapshotsItems(t *testing.T) {
	store := order.NewMemStore()
	svc := &order.Service{Store: store}

	o, err := svc.Place(context.Background(), newOrder("u1"))
	require.NoError(t, err)
	require.Len(t, o.Items, 1)
	require.Equal(t, order.ItemPlaced, o.Items[0].Status)
	require.True(t, o.Items[0].UnitMRP.Equal(decimal.NewFromInt(400)))
	require.False(t, o.Items[0].Delivered())

	_, err = svc.Place(context.Background(), order.New{UserID: "u1"})
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, appErr.HTTPStatus)
}

func TestGetIsScopedToUser(t *testing.T) {
	store := order.NewMemStore()
	svc := &order.Service{Store: store}
	o, err := svc.Place(context.Background(), newOrder("u1"))
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), "u2", o.ID)
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	_, err = svc.Get(context.Background(), "u1", "not-a-uuid")
	require.Error(t, err)

	require.NoError(t, svc.AttachGatewayOrder(context.Background(), o.ID, "order_abc"))
	got, err := svc.Get(context.Background(), "u1", o.ID)
	require.NoError(t, err)
	require.Equal(t, "order_abc", got.GatewayOrderID)
}

func TestListHandlerPaginates(t *testing.T) {
	store := order.NewMemStore()
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	n := 0
	store.Now = func() time.Time { n++; return base.Add(time.Duration(n) * time.Hour) }
	svc := &order.Service{Store: store}
	for i := 0; i < 3; i++ {
		_, err := svc.Place(context.Background(), newOrder("u1"))
		require.NoError(t, err)
	}

	r := chi.NewRouter()
	r.Get("/orders", order.Handler{Svc: svc}.List)
	req := httptest.NewRequest(http.MethodGet, "/orders?page=2&limit=2", nil)
	req = req.WithContext(common.WithUserID(req.Context(), "u1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data       []order.Order     `json:"data"`
		Pagination common.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	require.Equal(t, 3, body.Pagination.TotalItems)
}

func TestHandlersRequireLogin(t *testing.T) {
	rec := httptest.NewRecorder()
	order.Handler{Svc: &order.Service{Store: order.NewMemStore()}}.List(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
