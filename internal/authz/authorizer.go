package authz

import jwtinfra "github.com/go-storefront-auth/internal/infrastructure/jwt"

// TokenVerifier validates a session token and returns its claims.
type TokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// Authorizer combines token verification with a Policy.
type Authorizer struct {
	verifier TokenVerifier
	policy   *Policy
}

func NewAuthorizer(verifier TokenVerifier, policy *Policy) *Authorizer {
	return &Authorizer{verifier: verifier, policy: policy}
}

// Authorize decides a request carrying token (empty when none was sent).
// An invalid token is treated as no token. The verified claims are returned
// alongside the decision so callers can hand them to downstream handlers.
func (a *Authorizer) Authorize(method, path, token string) (*jwtinfra.Claims, Decision) {
	var claims *jwtinfra.Claims
	if token != "" {
		if c, err := a.verifier.Verify(token); err == nil {
			claims = c
		}
	}
	return claims, a.policy.Decide(method, path, claims)
}

// Policy returns the table the Authorizer enforces.
func (a *Authorizer) Policy() *Policy { return a.policy }
