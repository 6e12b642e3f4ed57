package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-storefront-auth/internal/authz"
	jwtinfra "github.com/go-storefront-auth/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

// Authorize consults the route policy for every request. Verified claims are
// injected into the context; denied requests never reach the router.
func Authorize(a *authz.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			claims, decision := a.Authorize(r.Method, r.URL.Path, bearerToken(r))
			switch decision {
			case authz.Allow:
			case authz.DenyUnauthenticated:
				writeJSONError(w, http.StatusUnauthorized, "authentication required")
				return
			default:
				writeJSONError(w, http.StatusForbidden, "forbidden")
				return
			}
			if claims != nil {
				r = r.WithContext(context.WithValue(r.Context(), ClaimsKey, claims))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
