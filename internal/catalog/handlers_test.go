package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/cache"
	"github.com/noah-isme/storefront-checkout/internal/catalog"
	"github.com/noah-isme/storefront-checkout/internal/common"
)

const (
	shirtID  = "6a1b4f8e-2a9c-4c1e-9e63-0d3c1f1a0001"
	mugID    = "6a1b4f8e-2a9c-4c1e-9e63-0d3c1f1a0002"
	variantM = "7b2c5a9f-3b0d-4d2f-8f74-1e4d2a2b0001"
)

type fakeStore struct {
	mu          sync.Mutex
	detailCalls int
	details     map[string]catalog.ProductDetail
	list        []catalog.ProductListItem
	lastParams  catalog.ListParams
}

func (f *fakeStore) ListProducts(_ context.Context, p catalog.ListParams) ([]catalog.ProductListItem, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastParams = p
	end := min(p.Limit, len(f.list))
	return f.list[:end], int64(len(f.list)), nil
}

func (f *fakeStore) ProductDetail(_ context.Context, id string) (catalog.ProductDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detailCalls++
	d, ok := f.details[id]
	if !ok {
		return catalog.ProductDetail{}, catalog.ErrProductNotFound
	}
	return d, nil
}

func yes() *bool { b := true; return &b }

func newFixture(t *testing.T) (*fakeStore, *catalog.Service) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	weight := 0.3
	store := &fakeStore{
		details: map[string]catalog.ProductDetail{
			shirtID: {
				ID: shirtID, Name: "Linen Shirt", Price: decimal.NewFromInt(899), MRP: decimal.NewFromInt(1299), Stock: 0, IsCOD: yes(),
				WeightKg: &weight,
				Variants: []catalog.Variant{{ID: variantM, Name: "M", SKU: "LS-M", Price: decimal.NewFromInt(899), MRP: decimal.NewFromInt(1299), Stock: 3}},
			},
			mugID: {ID: mugID, Name: "Mug", Price: decimal.NewFromInt(250), MRP: decimal.NewFromInt(300), Stock: 0},
		},
		list: []catalog.ProductListItem{
			{ID: shirtID, Name: "Linen Shirt", Price: decimal.NewFromInt(899), MRP: decimal.NewFromInt(1299), InStock: true},
			{ID: mugID, Name: "Mug", Price: decimal.NewFromInt(250), MRP: decimal.NewFromInt(300)},
		},
	}
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: store, Cache: cache.New(client, time.Minute), DefaultLimit: 20, MaxLimit: 50})
	require.NoError(t, err)
	return store, svc
}

func TestProductsHandlerPaginates(t *testing.T) {
	store, svc := newFixture(t)
	handler := catalog.Handler{Svc: svc}

	rec := httptest.NewRecorder()
	handler.Products(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?limit=1&in_stock=true&sort=price_asc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "2", rec.Header().Get("X-Total-Count"))

	var resp struct {
		Data       []catalog.ProductListItem `json:"data"`
		Pagination common.Pagination         `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	require.Equal(t, "Linen Shirt", resp.Data[0].Name)
	require.Equal(t, 2, resp.Pagination.TotalItems)
	require.True(t, store.lastParams.InStockOnly)
	require.Equal(t, "price_asc", store.lastParams.Sort)

	rec = httptest.NewRecorder()
	handler.Products(rec, httptest.NewRequest(http.MethodGet, "/api/v1/products?sort=random", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestParseListParamsCapsLimit(t *testing.T) {
	_, svc := newFixture(t)
	p, err := svc.ParseListParams(url.Values{"limit": {"500"}, "page": {"3"}})
	require.NoError(t, err)
	require.Equal(t, 50, p.Limit)
	require.Equal(t, 3, p.Page)
}

func TestProductDetailIsCached(t *testing.T) {
	store, svc := newFixture(t)
	handler := catalog.Handler{Svc: svc}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/products/"+shirtID, nil)
		routeCtx := chi.NewRouteContext()
		routeCtx.URLParams.Add("id", shirtID)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
		rec := httptest.NewRecorder()
		handler.ProductDetail(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Data catalog.ProductDetail `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "Linen Shirt", resp.Data.Name)
		require.Len(t, resp.Data.Variants, 1)
	}
	require.Equal(t, 1, store.detailCalls)

	_, err := svc.GetProductDetail(context.Background(), "not-a-uuid")
	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
}

func TestLineItemForBuyNow(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	item, err := svc.LineItemFor(ctx, shirtID, variantM, 10)
	require.NoError(t, err)
	require.Equal(t, 3, item.Quantity, "clamped to stock")
	require.Equal(t, "M", item.VariantName)
	require.True(t, item.CODEligible())
	require.InDelta(t, 0.3, item.WeightKg, 1e-9)

	_, err = svc.LineItemFor(ctx, shirtID, "", 1)
	appErr, _ := common.AsAppError(err)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)

	_, err = svc.LineItemFor(ctx, mugID, "", 1)
	appErr, _ = common.AsAppError(err)
	require.Equal(t, "OUT_OF_STOCK", appErr.Code)
}
