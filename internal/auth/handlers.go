package auth

import (
	"net/http"

	"github.com/noah-isme/storefront-checkout/internal/common"
)

// Handler exposes HTTP handlers for login and profile endpoints.
type Handler struct {
	Service *Service
	// EchoOTP returns the issued code in the response meta. Development only.
	EchoOTP bool
}

type sendOTPRequest struct {
	Phone string `json:"phone"`
}

type verifyOTPRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SendOTP handles POST /auth/otp/send.
func (h *Handler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	sent, err := h.Service.SendOTP(r.Context(), req.Phone)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	resp := map[string]any{"data": sent}
	if h.EchoOTP {
		resp["meta"] = map[string]string{"otp": sent.Code}
	}
	common.JSON(w, http.StatusAccepted, resp)
}

// VerifyOTP handles POST /auth/otp/verify.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	result, err := h.Service.VerifyOTP(r.Context(), req.Phone, req.Code)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Refresh handles POST /auth/refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	result, err := h.Service.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// Logout handles POST /auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, r, err)
		return
	}
	if err := h.Service.Logout(r.Context(), req.RefreshToken); err != nil {
		common.WriteError(w, r, common.Upstream(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	user, err := h.Service.Me(r.Context(), userID)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": user})
}

// UpdateProfile handles PATCH /me.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := common.RequireUserID(r.Context())
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	var in ProfileInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, r, err)
		return
	}
	user, err := h.Service.UpdateProfile(r.Context(), userID, in)
	if err != nil {
		common.WriteError(w, r, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": user})
}
