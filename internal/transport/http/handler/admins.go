package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-storefront-auth/internal/application/account"
	"github.com/go-storefront-auth/internal/application/onboarding"
	"github.com/go-storefront-auth/internal/domain"
	"github.com/go-storefront-auth/internal/transport/http/middleware"
	"github.com/rs/zerolog"
)

// AdminHandler serves admin onboarding and the admin credential endpoints.
type AdminHandler struct {
	accounts   account.Service
	onboarding onboarding.Service
	log        zerolog.Logger
}

func NewAdminHandler(accounts account.Service, ob onboarding.Service, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{accounts: accounts, onboarding: ob, log: log}
}

func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.onboarding.Start(r.Context(), req)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	env := OnboardingEnvelope{
		Message:   "Registration request sent for approval",
		Reference: res.Reference,
	}
	if res.ExpiresIn > 0 {
		env.ExpiresIn = res.ExpiresIn.String()
	}
	writeJSON(w, http.StatusAccepted, env)
}

func (h *AdminHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	a, err := h.onboarding.Confirm(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Admin approved", Data: a})
}

func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	if err := h.onboarding.Reject(r.Context(), chi.URLParam(r, "token")); err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Admin request rejected"})
}

func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	login(w, r, h.accounts, h.log)
}

func (h *AdminHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile(w, r, h.accounts, h.log)
}

func (h *AdminHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	var req domain.ProfileUpdate
	if !decode(w, r, &req) {
		return
	}
	a, err := h.accounts.UpdateProfile(r.Context(), claims.Subject, req)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Profile updated", Data: a})
}

func (h *AdminHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	forgotPassword(w, r, h.accounts, h.log)
}

func (h *AdminHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	verifyResetOTP(w, r, h.accounts, h.log)
}

func (h *AdminHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	resetPassword(w, r, h.accounts, h.log)
}
