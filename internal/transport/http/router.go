package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-storefront-auth/internal/application/account"
	"github.com/go-storefront-auth/internal/application/onboarding"
	"github.com/go-storefront-auth/internal/authz"
	"github.com/go-storefront-auth/internal/config"
	jwtinfra "github.com/go-storefront-auth/internal/infrastructure/jwt"
	"github.com/go-storefront-auth/internal/infrastructure/pending"
	"github.com/go-storefront-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-storefront-auth/internal/transport/http/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    AccountRepository
	AdminRepo   AccountRepository
	Pending     *pending.Store
	Mail        MailQueue
	JWTProvider *jwtinfra.Provider
	Policy      *authz.Policy
	// SensitiveLimiter throttles the public credential endpoints. A default
	// limiter is created when nil; the caller owns stopping a supplied one.
	SensitiveLimiter *appmiddleware.RateLimiter
	Log              zerolog.Logger
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(appmiddleware.RequestLogger(deps.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.CleanPath)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	policy := deps.Policy
	if policy == nil {
		policy = authz.StorefrontPolicy()
	}
	r.Use(appmiddleware.Authorize(authz.NewAuthorizer(deps.JWTProvider, policy)))

	sensitiveRL := deps.SensitiveLimiter
	if sensitiveRL == nil {
		// 5 requests/second, burst of 10.
		sensitiveRL = appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	}
	userSvc := account.NewService(account.ServiceDeps{
		Audience:    account.Users,
		AccountRepo: deps.UserRepo,
		Pending:     deps.Pending,
		Mail:        deps.Mail,
		Tokens:      deps.JWTProvider,
		Log:         deps.Log,
	})
	adminSvc := account.NewService(account.ServiceDeps{
		Audience:    account.Admins,
		AccountRepo: deps.AdminRepo,
		Pending:     deps.Pending,
		Mail:        deps.Mail,
		Tokens:      deps.JWTProvider,
		Log:         deps.Log,
	})
	onboardingSvc := onboarding.NewService(onboarding.ServiceDeps{
		AdminRepo: deps.AdminRepo,
		Pending:   deps.Pending,
		Mail:      deps.Mail,
		Approvers: cfg.AdminApprovers,
		BaseURL:   cfg.PublicBaseURL,
		Log:       deps.Log,
	})

	healthH := handler.NewHealthHandler(deps.Pending)
	userH := handler.NewUserHandler(userSvc, deps.Log)
	adminH := handler.NewAdminHandler(adminSvc, onboardingSvc, deps.Log)

	r.Get("/health-check/{action}", healthH.Ping)

	r.Route("/api/user", func(r chi.Router) {
		limited := r.With(sensitiveRL.Limit)
		limited.Post("/register", userH.Register)
		limited.Post("/verify-otp", userH.VerifyOTP)
		limited.Post("/login", userH.Login)
		limited.Post("/forgot-password", userH.ForgotPassword)
		limited.Post("/verify-reset-otp", userH.VerifyResetOTP)
		limited.Post("/reset-password", userH.ResetPassword)
		r.Get("/profile", userH.Profile)
	})

	r.Route("/api/admin", func(r chi.Router) {
		limited := r.With(sensitiveRL.Limit)
		limited.Post("/register", adminH.Register)
		limited.Post("/login", adminH.Login)
		limited.Post("/forgot-password", adminH.ForgotPassword)
		limited.Post("/verify-otp", adminH.VerifyOTP)
		limited.Post("/reset-password", adminH.ResetPassword)
		limited.Get("/confirm/{token}", adminH.Confirm)
		limited.Get("/reject/{token}", adminH.Reject)
		r.Get("/profile", adminH.Profile)
		r.Put("/profile", adminH.UpdateProfile)
	})

	return r
}
