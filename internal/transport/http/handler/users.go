package handler

import (
	"net/http"

	"github.com/go-storefront-auth/internal/application/account"
	"github.com/go-storefront-auth/internal/domain"
	"github.com/go-storefront-auth/internal/pkg/validate"
	"github.com/go-storefront-auth/internal/transport/http/middleware"
	"github.com/rs/zerolog"
)

// UserHandler serves the storefront user credential endpoints.
type UserHandler struct {
	svc account.Service
	log zerolog.Logger
}

func NewUserHandler(svc account.Service, log zerolog.Logger) *UserHandler {
	return &UserHandler{svc: svc, log: log}
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.svc.StartRegistration(r.Context(), req); err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent to email"})
}

func (h *UserHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req OTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, h.log, err)
		return
	}
	a, err := h.svc.VerifyRegistration(r.Context(), req.Email, req.OTP)
	if err != nil {
		httpError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageEnvelope{Message: "User registered successfully", Data: a})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	login(w, r, h.svc, h.log)
}

func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile(w, r, h.svc, h.log)
}

func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	forgotPassword(w, r, h.svc, h.log)
}

func (h *UserHandler) VerifyResetOTP(w http.ResponseWriter, r *http.Request) {
	verifyResetOTP(w, r, h.svc, h.log)
}

func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	resetPassword(w, r, h.svc, h.log)
}

// The helpers below are shared by the user and admin audiences.

func login(w http.ResponseWriter, r *http.Request, svc account.Service, log zerolog.Logger) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, log, err)
		return
	}
	token, a, err := svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, authEnvelope(token, a))
}

func profile(w http.ResponseWriter, r *http.Request, svc account.Service, log zerolog.Logger) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	a, err := svc.Profile(r.Context(), claims.Subject)
	if err != nil {
		httpError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Profile fetched", Data: a})
}

func forgotPassword(w http.ResponseWriter, r *http.Request, svc account.Service, log zerolog.Logger) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, log, err)
		return
	}
	if err := svc.StartPasswordReset(r.Context(), req.Email); err != nil {
		httpError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent to email"})
}

func verifyResetOTP(w http.ResponseWriter, r *http.Request, svc account.Service, log zerolog.Logger) {
	var req OTPRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, log, err)
		return
	}
	if err := svc.VerifyResetOTP(r.Context(), req.Email, req.OTP); err != nil {
		httpError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP verified"})
}

func resetPassword(w http.ResponseWriter, r *http.Request, svc account.Service, log zerolog.Logger) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, log, err)
		return
	}
	if err := svc.ResetPassword(r.Context(), req.Email, req.Password); err != nil {
		httpError(w, log, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password reset successfully"})
}
