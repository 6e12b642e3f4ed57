package account

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-storefront-auth/internal/domain"
	"github.com/go-storefront-auth/internal/infrastructure/pending"
	"github.com/go-storefront-auth/internal/infrastructure/smtp"
	"github.com/go-storefront-auth/internal/pkg/credential"
	"github.com/go-storefront-auth/internal/pkg/id"
	"github.com/go-storefront-auth/internal/pkg/validate"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Audience describes one population of accounts (storefront users or admins).
type Audience struct {
	Name         string
	Role         string
	ResetPurpose pending.Purpose
	// SelfSignup allows StartRegistration. Admins join through onboarding instead.
	SelfSignup bool
	// RequireApproval refuses logins for accounts that were never approved.
	RequireApproval bool
}

var (
	Users = Audience{
		Name:         "user",
		Role:         domain.RoleUser,
		ResetPurpose: pending.PurposeUserReset,
		SelfSignup:   true,
	}
	Admins = Audience{
		Name:            "admin",
		Role:            domain.RoleAdmin,
		ResetPurpose:    pending.PurposeAdminReset,
		RequireApproval: true,
	}
)

type Service interface {
	StartRegistration(ctx context.Context, req domain.SignupRequest) error
	VerifyRegistration(ctx context.Context, email, code string) (*domain.Account, error)
	StartPasswordReset(ctx context.Context, email string) error
	VerifyResetOTP(ctx context.Context, email, code string) error
	ResetPassword(ctx context.Context, email, newPassword string) error
	Login(ctx context.Context, email, password string) (string, *domain.Account, error)
	Profile(ctx context.Context, email string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, email string, u domain.ProfileUpdate) (*domain.Account, error)
}

type accountStore interface {
	Save(ctx context.Context, a *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	UpdateProfile(ctx context.Context, email string, u domain.ProfileUpdate) error
}

type pendingStore interface {
	Put(rec pending.Record)
	ConsumeIf(key pending.Key, match func(pending.Record) bool) (pending.Record, error)
	ReplaceIf(key pending.Key, match func(pending.Record) bool, next func(pending.Record) pending.Record) (pending.Record, error)
	Restore(rec pending.Record) bool
	TTL(k pending.Kind) time.Duration
}

type mailQueue interface {
	SendAsync(msg smtp.Message)
}

type tokenIssuer interface {
	Issue(subject, role string) (string, error)
}

type service struct {
	audience Audience
	repo     accountStore
	pending  pendingStore
	mail     mailQueue
	tokens   tokenIssuer
	log      zerolog.Logger
}

type ServiceDeps struct {
	Audience    Audience
	AccountRepo accountStore
	Pending     pendingStore
	Mail        mailQueue
	Tokens      tokenIssuer
	Log         zerolog.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{
		audience: deps.Audience,
		repo:     deps.AccountRepo,
		pending:  deps.Pending,
		mail:     deps.Mail,
		tokens:   deps.Tokens,
		log:      deps.Log.With().Str("audience", deps.Audience.Name).Logger(),
	}
}

// NormalizeEmail is the identity key used everywhere: trimmed and lower-cased.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) StartRegistration(ctx context.Context, req domain.SignupRequest) error {
	if !s.audience.SelfSignup {
		return fmt.Errorf("%s accounts cannot self-register: %w", s.audience.Name, domain.ErrForbidden)
	}
	req.Email = NormalizeEmail(req.Email)
	if err := validate.Struct(req); err != nil {
		return err
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("email already exists: %w", domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	code, err := credential.Numeric(credential.OTPLength)
	if err != nil {
		return err
	}
	s.pending.Put(pending.Record{
		Key:  pending.Key{Purpose: pending.PurposeRegister, ID: req.Email},
		Kind: pending.KindOTP,
		Code: code,
		Payload: &domain.PendingAccount{
			Username:     req.Username,
			Email:        req.Email,
			PasswordHash: string(hash),
			Address:      req.Address,
			Gender:       req.Gender,
			Phone:        req.Phone,
		},
	})
	s.mail.SendAsync(otpMessage(req.Email, code, s.pending.TTL(pending.KindOTP)))
	s.log.Info().Msg("registration otp issued")
	return nil
}

func (s *service) VerifyRegistration(ctx context.Context, email, code string) (*domain.Account, error) {
	email = NormalizeEmail(email)
	key := pending.Key{Purpose: pending.PurposeRegister, ID: email}
	rec, err := s.pending.ConsumeIf(key, func(r pending.Record) bool { return codeMatches(r.Code, code) })
	if err != nil {
		return nil, otpError("registration", err)
	}
	if rec.Payload == nil {
		return nil, fmt.Errorf("pending registration for %s has no payload", s.audience.Name)
	}
	now := time.Now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Username:     rec.Payload.Username,
		Email:        rec.Payload.Email,
		PasswordHash: rec.Payload.PasswordHash,
		Role:         s.audience.Role,
		Address:      rec.Payload.Address,
		Gender:       rec.Payload.Gender,
		Phone:        rec.Payload.Phone,
		Approved:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Save(ctx, a); err != nil {
		// A conflict is final; anything else leaves the code redeemable.
		if !errors.Is(err, domain.ErrConflict) && s.pending.Restore(rec) {
			s.log.Warn().Err(err).Msg("account save failed, registration otp restored")
		}
		return nil, err
	}
	s.log.Info().Str("account_id", a.AccountID).Msg("account registered")
	return a, nil
}

func (s *service) StartPasswordReset(ctx context.Context, email string) error {
	email = NormalizeEmail(email)
	if _, err := s.repo.FindByEmail(ctx, email); err != nil {
		return err
	}
	code, err := credential.Numeric(credential.OTPLength)
	if err != nil {
		return err
	}
	s.pending.Put(pending.Record{
		Key:  s.resetKey(email),
		Kind: pending.KindOTP,
		Code: code,
	})
	s.mail.SendAsync(otpMessage(email, code, s.pending.TTL(pending.KindOTP)))
	s.log.Info().Msg("password reset otp issued")
	return nil
}

// VerifyResetOTP spends the reset code and leaves a verified grant in its
// place, which ResetPassword later redeems.
func (s *service) VerifyResetOTP(_ context.Context, email, code string) error {
	email = NormalizeEmail(email)
	_, err := s.pending.ReplaceIf(s.resetKey(email),
		func(r pending.Record) bool { return !r.Verified && codeMatches(r.Code, code) },
		func(pending.Record) pending.Record { return pending.Record{Kind: pending.KindOTP, Verified: true} },
	)
	if err != nil {
		return otpError("password reset", err)
	}
	return nil
}

func (s *service) ResetPassword(ctx context.Context, email, newPassword string) error {
	email = NormalizeEmail(email)
	if err := validate.Struct(passwordInput{Password: newPassword}); err != nil {
		return err
	}
	grant, err := s.pending.ConsumeIf(s.resetKey(email), func(r pending.Record) bool { return r.Verified })
	switch {
	case errors.Is(err, pending.ErrExpired):
		return fmt.Errorf("password reset grant: %w", domain.ErrExpired)
	case err != nil:
		return fmt.Errorf("password reset not verified: %w", domain.ErrInvalidOrExpiredToken)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		s.pending.Restore(grant)
		return err
	}
	if err := s.repo.UpdatePassword(ctx, email, string(hash)); err != nil {
		if s.pending.Restore(grant) {
			s.log.Warn().Err(err).Msg("password update failed, reset grant restored")
		}
		return err
	}
	s.log.Info().Msg("password reset")
	return nil
}

func (s *service) Login(ctx context.Context, email, password string) (string, *domain.Account, error) {
	email = NormalizeEmail(email)
	a, err := s.repo.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	if s.audience.RequireApproval && !a.Approved {
		return "", nil, fmt.Errorf("invalid credentials: %w", domain.ErrUnauthorized)
	}
	token, err := s.tokens.Issue(a.Email, s.audience.Role)
	if err != nil {
		return "", nil, err
	}
	return token, a, nil
}

func (s *service) Profile(ctx context.Context, email string) (*domain.Account, error) {
	return s.repo.FindByEmail(ctx, NormalizeEmail(email))
}

func (s *service) UpdateProfile(ctx context.Context, email string, u domain.ProfileUpdate) (*domain.Account, error) {
	email = NormalizeEmail(email)
	if u.Username != nil && strings.TrimSpace(*u.Username) == "" {
		return nil, fmt.Errorf("username cannot be empty: %w", domain.ErrBadRequest)
	}
	if err := s.repo.UpdateProfile(ctx, email, u); err != nil {
		return nil, err
	}
	return s.repo.FindByEmail(ctx, email)
}

func (s *service) resetKey(email string) pending.Key {
	return pending.Key{Purpose: s.audience.ResetPurpose, ID: email}
}

type passwordInput struct {
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func codeMatches(want, got string) bool {
	return want != "" && subtle.ConstantTimeCompare([]byte(want), []byte(strings.TrimSpace(got))) == 1
}

// otpError translates pending-store outcomes for an OTP check.
func otpError(flow string, err error) error {
	switch {
	case errors.Is(err, pending.ErrNotFound):
		return fmt.Errorf("no pending %s: %w", flow, domain.ErrNotFound)
	case errors.Is(err, pending.ErrExpired):
		return fmt.Errorf("%s otp: %w", flow, domain.ErrExpired)
	case errors.Is(err, pending.ErrMismatch):
		return fmt.Errorf("%s otp: %w", flow, domain.ErrInvalidCode)
	default:
		return err
	}
}
