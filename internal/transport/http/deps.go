package http

import (
	"context"

	"github.com/go-storefront-auth/internal/domain"
	"github.com/go-storefront-auth/internal/infrastructure/smtp"
)

// AccountRepository is the minimal interface the router requires from an account store.
// One instance serves users, another admins.
type AccountRepository interface {
	Save(ctx context.Context, a *domain.Account) error
	FindByEmail(ctx context.Context, email string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	UpdatePassword(ctx context.Context, email, passwordHash string) error
	UpdateProfile(ctx context.Context, email string, u domain.ProfileUpdate) error
}

// MailQueue accepts outbound mail without blocking the request.
type MailQueue interface {
	SendAsync(msg smtp.Message)
}
