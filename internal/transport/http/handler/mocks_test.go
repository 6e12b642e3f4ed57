package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-storefront-auth/internal/application/onboarding"
	"github.com/go-storefront-auth/internal/domain"
	jwtinfra "github.com/go-storefront-auth/internal/infrastructure/jwt"
	"github.com/go-storefront-auth/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

// --- mocks ---

type mockAccountSvc struct{ mock.Mock }

func (m *mockAccountSvc) StartRegistration(ctx context.Context, req domain.SignupRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockAccountSvc) VerifyRegistration(ctx context.Context, email, code string) (*domain.Account, error) {
	args := m.Called(ctx, email, code)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountSvc) StartPasswordReset(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAccountSvc) VerifyResetOTP(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

func (m *mockAccountSvc) ResetPassword(ctx context.Context, email, newPassword string) error {
	return m.Called(ctx, email, newPassword).Error(0)
}

func (m *mockAccountSvc) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	args := m.Called(ctx, email, password)
	if a, _ := args.Get(1).(*domain.Account); a != nil {
		return args.String(0), a, args.Error(2)
	}
	return "", nil, args.Error(2)
}

func (m *mockAccountSvc) Profile(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAccountSvc) UpdateProfile(ctx context.Context, email string, u domain.ProfileUpdate) (*domain.Account, error) {
	args := m.Called(ctx, email, u)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOnboardingSvc struct{ mock.Mock }

func (m *mockOnboardingSvc) Start(ctx context.Context, req domain.SignupRequest) (*onboarding.Request, error) {
	args := m.Called(ctx, req)
	if r, _ := args.Get(0).(*onboarding.Request); r != nil {
		return r, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOnboardingSvc) Confirm(ctx context.Context, token string) (*domain.Account, error) {
	args := m.Called(ctx, token)
	if a, _ := args.Get(0).(*domain.Account); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOnboardingSvc) Reject(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

// --- helpers ---

// withClaims places verified claims in the request context, as the Authorize middleware does.
func withClaims(r *http.Request, subject, role string) *http.Request {
	c := &jwtinfra.Claims{Role: role}
	c.Subject = subject
	return r.WithContext(context.WithValue(r.Context(), middleware.ClaimsKey, c))
}

// withURLParam injects a chi URL param into the request context.
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
