// Package onboarding runs the admin approval workflow: a signup is parked
// behind an opaque token, approvers are mailed confirm and reject links, and
// whichever link is used first decides the outcome.
package onboarding

import (
	"context"
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

// Request is the outcome of Start.
type Request struct {
	// Reference is a short code quoted in every mail about this request.
	Reference string
	ExpiresIn time.Duration
}

type Service interface {
	Start(ctx context.Context, req domain.SignupRequest) (*Request, error)
	Confirm(ctx context.Context, token string) (*domain.Account, error)
	Reject(ctx context.Context, token string) error
}

type accountStore interface {
	Save(ctx context.Context, a *domain.Account) error
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type pendingStore interface {
	Put(rec pending.Record)
	Consume(key pending.Key) (pending.Record, error)
	Restore(rec pending.Record) bool
	TTL(k pending.Kind) time.Duration
}

type mailQueue interface {
	SendAsync(msg smtp.Message)
}

type service struct {
	repo      accountStore
	pending   pendingStore
	mail      mailQueue
	approvers []string
	baseURL   string
	log       zerolog.Logger
}

type ServiceDeps struct {
	AdminRepo accountStore
	Pending   pendingStore
	Mail      mailQueue
	// Approvers receive the confirm and reject links.
	Approvers []string
	// BaseURL prefixes the links, e.g. "https://shop.example.com".
	BaseURL string
	Log     zerolog.Logger
}

func NewService(deps ServiceDeps) Service {
	return &service{
		repo:      deps.AdminRepo,
		pending:   deps.Pending,
		mail:      deps.Mail,
		approvers: deps.Approvers,
		baseURL:   strings.TrimRight(deps.BaseURL, "/"),
		log:       deps.Log.With().Str("flow", "admin_onboarding").Logger(),
	}
}

func (s *service) Start(ctx context.Context, req domain.SignupRequest) (*Request, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if len(s.approvers) == 0 {
		return nil, errors.New("no admin approvers configured")
	}
	exists, err := s.repo.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("email already exists: %w", domain.ErrConflict)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	token, err := credential.ApprovalToken()
	if err != nil {
		return nil, err
	}
	ref, err := credential.Alphanumeric(2)
	if err != nil {
		return nil, err
	}
	payload := &domain.PendingAccount{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		Address:      req.Address,
		Gender:       req.Gender,
		Phone:        req.Phone,
	}
	ttl := s.pending.TTL(pending.KindApprovalToken)
	msgs := make([]smtp.Message, 0, len(s.approvers)+1)
	for _, to := range s.approvers {
		msg, err := approvalRequestMessage(to, approvalRequest{
			Reference:  ref,
			Username:   payload.Username,
			Email:      payload.Email,
			Phone:      payload.Phone,
			Address:    payload.Address,
			ConfirmURL: s.baseURL + "/api/admin/confirm/" + token,
			RejectURL:  s.baseURL + "/api/admin/reject/" + token,
			ExpiresIn:  ttl,
		})
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	msgs = append(msgs, receivedMessage(payload.Email, payload.Username, ref))

	// Nothing is stored or sent until every message has rendered.
	s.pending.Put(pending.Record{
		Key:     pending.Key{Purpose: pending.PurposeApproval, ID: token},
		Kind:    pending.KindApprovalToken,
		Code:    ref,
		Payload: payload,
	})
	for _, msg := range msgs {
		s.mail.SendAsync(msg)
	}
	s.log.Info().Str("reference", ref).Int("approvers", len(s.approvers)).Msg("admin approval requested")
	return &Request{Reference: ref, ExpiresIn: ttl}, nil
}

func (s *service) Confirm(ctx context.Context, token string) (*domain.Account, error) {
	rec, err := s.take(token)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	a := &domain.Account{
		AccountID:    id.New(),
		Username:     rec.Payload.Username,
		Email:        rec.Payload.Email,
		PasswordHash: rec.Payload.PasswordHash,
		Role:         domain.RoleAdmin,
		Address:      rec.Payload.Address,
		Gender:       rec.Payload.Gender,
		Phone:        rec.Payload.Phone,
		Approved:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Save(ctx, a); err != nil {
		// Anything but a conflict leaves the link usable.
		if !errors.Is(err, domain.ErrConflict) && s.pending.Restore(rec) {
			s.log.Warn().Err(err).Str("reference", rec.Code).Msg("admin save failed, approval token restored")
		}
		return nil, err
	}
	s.mail.SendAsync(approvedMessage(a.Email, a.Username, a.Phone))
	s.log.Info().Str("reference", rec.Code).Str("account_id", a.AccountID).Msg("admin approved")
	return a, nil
}

func (s *service) Reject(_ context.Context, token string) error {
	rec, err := s.take(token)
	if err != nil {
		return err
	}
	s.mail.SendAsync(rejectedMessage(rec.Payload.Email, rec.Payload.Username))
	s.log.Info().Str("reference", rec.Code).Msg("admin rejected")
	return nil
}

// take consumes the approval record for token. Whoever takes it first decides
// the request; everyone else sees ErrInvalidOrExpiredToken.
func (s *service) take(token string) (pending.Record, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return pending.Record{}, fmt.Errorf("approval token: %w", domain.ErrInvalidOrExpiredToken)
	}
	rec, err := s.pending.Consume(pending.Key{Purpose: pending.PurposeApproval, ID: token})
	if err != nil {
		if errors.Is(err, pending.ErrNotFound) || errors.Is(err, pending.ErrExpired) {
			return pending.Record{}, fmt.Errorf("approval token: %w", domain.ErrInvalidOrExpiredToken)
		}
		return pending.Record{}, err
	}
	if rec.Payload == nil {
		return pending.Record{}, errors.New("approval record has no payload")
	}
	return rec, nil
}
