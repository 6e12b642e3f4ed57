package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-storefront-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthEnvelope wraps login responses.
type AuthEnvelope struct {
	Token    string `json:"token"`
	Type     string `json:"type"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// OnboardingEnvelope acknowledges an admin registration request.
type OnboardingEnvelope struct {
	Message   string `json:"message"`
	Reference string `json:"reference"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

func authEnvelope(token string, a *domain.Account) AuthEnvelope {
	return AuthEnvelope{Token: token, Type: "Bearer", Email: a.Email, Username: a.Username}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// decode reads a JSON body of at most 1 MiB into v.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}
