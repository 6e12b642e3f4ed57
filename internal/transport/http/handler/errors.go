package handler

import (
	"errors"
	"net/http"

	"github.com/go-storefront-auth/internal/domain"
	"github.com/rs/zerolog"
)

// httpError maps a service error to a stable status and message. Messages are
// fixed per kind so that internals never leak; unknown errors are logged.
func httpError(w http.ResponseWriter, log zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, "invalid otp")
	case errors.Is(err, domain.ErrInvalidOrExpiredToken):
		writeError(w, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusGone, "otp expired")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "email already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
