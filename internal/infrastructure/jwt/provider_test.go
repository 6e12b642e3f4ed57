package jwtinfra

import (
	"strings"
	"testing"
	"time"

	"github.com/go-storefront-auth/internal/config"
	"github.com/go-storefront-auth/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestProvider(t *testing.T, opts ...Option) *Provider {
	t.Helper()
	p, err := NewProvider(&config.Config{
		JWTSecret: testSecret,
		JWTIssuer: "storefront-test",
		JWTExpiry: time.Hour,
	}, opts...)
	require.NoError(t, err)
	return p
}

func TestNewProvider_RejectsMissingSecretOrExpiry(t *testing.T) {
	_, err := NewProvider(&config.Config{JWTExpiry: time.Hour})
	assert.Error(t, err)

	_, err = NewProvider(&config.Config{JWTSecret: testSecret})
	assert.Error(t, err)
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	p := newTestProvider(t)
	cases := []struct{ subject, role string }{
		{"a@x.com", domain.RoleUser},
		{"admin@shop.test", domain.RoleAdmin},
		{"weird+tag@sub.example.org", domain.RoleUser},
	}
	for _, tc := range cases {
		token, err := p.Issue(tc.subject, tc.role)
		require.NoError(t, err)

		claims, err := p.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, tc.subject, claims.Subject)
		assert.Equal(t, tc.role, claims.Role)
		assert.Equal(t, "storefront-test", claims.Issuer)
		assert.NotEmpty(t, claims.ID)
		assert.True(t, claims.ExpiresAt.After(claims.IssuedAt.Time))
	}
}

func TestIssue_UniqueTokenIDs(t *testing.T) {
	p := newTestProvider(t)
	a, err := p.Issue("a@x.com", domain.RoleUser)
	require.NoError(t, err)
	b, err := p.Issue("a@x.com", domain.RoleUser)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestIssue_RequiresSubject(t *testing.T) {
	_, err := newTestProvider(t).Issue("", domain.RoleUser)
	assert.Error(t, err)
}

func TestVerify_Expired(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	p := newTestProvider(t, WithClock(clock))
	token, err := p.Issue("a@x.com", domain.RoleUser)
	require.NoError(t, err)

	now = now.Add(time.Hour + time.Minute)
	_, err = p.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	other, err := NewProvider(&config.Config{
		JWTSecret: strings.Repeat("x", 32),
		JWTIssuer: "storefront-test",
		JWTExpiry: time.Hour,
	})
	require.NoError(t, err)
	token, err := other.Issue("a@x.com", domain.RoleAdmin)
	require.NoError(t, err)

	_, err = newTestProvider(t).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_TamperedPayload(t *testing.T) {
	p := newTestProvider(t)
	token, err := p.Issue("a@x.com", domain.RoleUser)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com", Issuer: "storefront-test"},
	}).SigningString()
	require.NoError(t, err)
	forgedParts := strings.Split(forged, ".")

	_, err = p.Verify(parts[0] + "." + forgedParts[1] + "." + parts[2])
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	p := newTestProvider(t)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@x.com",
			Issuer:    "storefront-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = p.Verify(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	p := newTestProvider(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com", Issuer: "storefront-test"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = p.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongIssuer(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: domain.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@x.com",
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = newTestProvider(t).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	p := newTestProvider(t)
	for _, tok := range []string{"", "not-a-token", "a.b.c", "...."} {
		_, err := p.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}
