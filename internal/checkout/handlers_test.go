package checkout_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/checkout"
	"github.com/noah-isme/storefront-checkout/internal/common"
)

func serve(t *testing.T, h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req = req.WithContext(common.WithUserID(req.Context(), userID))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlersCODFlow(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Route("/checkout", checkout.Handler{Svc: f.svc}.Routes)

	rec := serve(t, r, http.MethodPost, "/checkout", `{"mode":"cart"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var started struct {
		Data checkout.View `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	base := "/checkout/" + started.Data.ID

	rec = serve(t, r, http.MethodPut, base+"/payment-method", `{"method":"COD"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"can_submit":true`)

	rec = serve(t, r, http.MethodPost, base+"/submit", `{}`, "Idempotency-Key", "req-1")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"state":"done"`)

	rec = serve(t, r, http.MethodPost, base+"/submit", `{"request_id":"req-2"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "CHECKOUT_COMPLETE")
}

func TestHandlersRejectUnknownFields(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Route("/checkout", checkout.Handler{Svc: f.svc}.Routes)

	rec := serve(t, r, http.MethodPost, "/checkout", `{"mode":"cart","total":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlersRequireLogin(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Route("/checkout", checkout.Handler{Svc: f.svc}.Routes)

	req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{"mode":"cart"}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
