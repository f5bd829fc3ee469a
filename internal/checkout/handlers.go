package checkout

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes checkout sessions under /api/v1/checkout.
type Handler struct {
	Svc *Service
}

// Routes mounts the session endpoints on r.
func (h Handler) Routes(r chi.Router) {
	r.Post("/", h.Start)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Abandon)
		r.Put("/address", h.SelectAddress)
		r.Put("/payment-method", h.SelectPaymentMethod)
		r.Post("/coupon", h.ApplyCoupon)
		r.Delete("/coupon", h.RemoveCoupon)
		r.Patch("/quantity", h.UpdateQuantity)
		r.Post("/submit", h.Submit)
		r.Post("/payment-result", h.CompletePayment)
	})
}

func (h Handler) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return "", false
	}
	return userID, true
}

func respond(w http.ResponseWriter, r *http.Request, status int, v View, err error) {
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, status, map[string]any{"data": v})
}

func (h Handler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in StartInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	v, err := h.Svc.Start(r.Context(), userID, in)
	respond(w, r, http.StatusCreated, v, err)
}

func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	v, err := h.Svc.Get(r.Context(), userID, chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, v, err)
}

func (h Handler) Abandon(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	if err := h.Svc.Abandon(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		common.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in struct {
		AddressID string `json:"address_id" validate:"required,uuid"`
	}
	if err := decodeValid(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	v, err := h.Svc.SelectAddress(r.Context(), userID, chi.URLParam(r, "id"), in.AddressID)
	respond(w, r, http.StatusOK, v, err)
}

func (h Handler) SelectPaymentMethod(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in struct {
		Method string `json:"method" validate:"required"`
	}
	if err := decodeValid(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	v, err := h.Svc.SelectPaymentMethod(r.Context(), userID, chi.URLParam(r, "id"), in.Method)
	respond(w, r, http.StatusOK, v, err)
}

func (h Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in struct {
		Code string `json:"code" validate:"required,max=50"`
	}
	if err := decodeValid(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	v, err := h.Svc.ApplyCoupon(r.Context(), userID, chi.URLParam(r, "id"), in.Code)
	respond(w, r, http.StatusOK, v, err)
}

func (h Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	v, err := h.Svc.RemoveCoupon(r.Context(), userID, chi.URLParam(r, "id"))
	respond(w, r, http.StatusOK, v, err)
}

func (h Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in struct {
		Quantity int `json:"quantity" validate:"required,gte=1"`
	}
	if err := decodeValid(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	v, err := h.Svc.UpdateQuantity(r.Context(), userID, chi.URLParam(r, "id"), in.Quantity)
	respond(w, r, http.StatusOK, v, err)
}

// Submit handles POST .../submit. The Idempotency-Key header doubles as the
// request id when the body omits one.
func (h Handler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in struct {
		RequestID string `json:"request_id"`
	}
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if in.RequestID == "" {
		in.RequestID = r.Header.Get("Idempotency-Key")
	}
	v, err := h.Svc.Submit(r.Context(), userID, chi.URLParam(r, "id"), in.RequestID)
	respond(w, r, http.StatusOK, v, err)
}

func (h Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.user(w, r)
	if !ok {
		return
	}
	var in CompleteInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	v, err := h.Svc.CompletePayment(r.Context(), userID, chi.URLParam(r, "id"), in)
	respond(w, r, http.StatusOK, v, err)
}

func decodeValid(r *http.Request, dst any) error {
	if err := common.DecodeJSON(r, dst); err != nil {
		return err
	}
	return common.ValidateStruct(dst)
}
