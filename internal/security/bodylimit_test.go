package security

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

type payload struct {
	Note string `json:"note"`
}

func decodingHandler(t *testing.T, got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		if err := common.DecodeJSON(r, &p); err != nil {
			common.WriteError(w, r, err)
			return
		}
		*got = p.Note
		w.WriteHeader(http.StatusOK)
	})
}

func TestBodyLimitPassesSmallBodies(t *testing.T) {
	var got string
	h := BodyLimit{Max: 64}.Middleware(decodingHandler(t, &got))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", strings.NewReader(`{"note":"hi"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "hi", got)
}

func TestBodyLimitRejectsDeclaredLength(t *testing.T) {
	h := BodyLimit{Max: 5}.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader("content"))
	req.ContentLength = 100

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), "PAYLOAD_TOO_LARGE")
}

func TestBodyLimitRejectsStreamedBodyOnDecode(t *testing.T) {
	var got string
	h := BodyLimit{Max: 8}.Middleware(decodingHandler(t, &got))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", io.NopCloser(strings.NewReader(`{"note":"far too long for the cap"}`)))
	req.ContentLength = -1

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	require.Contains(t, rr.Body.String(), `"limit_bytes":8`)
	require.Empty(t, got)
}

func TestBodyLimitDisabled(t *testing.T) {
	var got string
	h := BodyLimit{}.Middleware(decodingHandler(t, &got))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"note":"`+strings.Repeat("x", 4096)+`"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, got, 4096)
}
