package security

import (
	"net/http"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// BodyLimit caps request bodies at Max bytes. Declared oversize bodies are
// refused up front; chunked ones fail when the handler's decode crosses the
// cap, which common.DecodeJSON reports as 413.
type BodyLimit struct {
	Max int64
}

func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	if b.Max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > b.Max {
			common.WriteError(w, r, common.PayloadTooLarge(b.Max))
			return
		}
		if r.Body != nil && r.Body != http.NoBody {
			r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		}
		next.ServeHTTP(w, r)
	})
}
