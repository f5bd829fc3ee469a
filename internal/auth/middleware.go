package auth

import (
	"net/http"
	"strings"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Middleware resolves bearer access tokens into the request's user id.
type Middleware struct {
	Service *Service
}

// Authenticate tags the request with the caller's user id when the bearer
// token verifies. Missing or bad tokens leave the request anonymous so public
// routes keep working for logged-out shoppers.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, ok := m.resolve(r); ok {
			r = r.WithContext(common.WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 unless the request carries a verified user id,
// either from Authenticate upstream or from its own bearer token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := common.UserID(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := m.resolve(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="storefront"`)
			common.WriteError(w, r, common.Unauthorized())
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUserID(r.Context(), userID)))
	})
}

func (m Middleware) resolve(r *http.Request) (string, bool) {
	if m.Service == nil {
		return "", false
	}
	token, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		return "", false
	}
	userID, err := m.Service.ParseAccessToken(token)
	if err != nil {
		return "", false
	}
	return userID, true
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
