// Package memory holds process-local implementations of the persistence ports,
// used for local development and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-storefront-auth/internal/domain"
	"github.com/puzpuzpuz/xsync/v3"
)

// AccountRepo keeps accounts keyed by lower-cased email.
type AccountRepo struct {
	accounts *xsync.MapOf[string, domain.Account]
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{accounts: xsync.NewMapOf[string, domain.Account]()}
}

func key(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (r *AccountRepo) Save(_ context.Context, a *domain.Account) error {
	if _, loaded := r.accounts.LoadOrStore(key(a.Email), *a); loaded {
		return fmt.Errorf("email already exists: %w", domain.ErrConflict)
	}
	return nil
}

func (r *AccountRepo) FindByEmail(_ context.Context, email string) (*domain.Account, error) {
	a, ok := r.accounts.Load(key(email))
	if !ok {
		return nil, fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return &a, nil
}

func (r *AccountRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	_, ok := r.accounts.Load(key(email))
	return ok, nil
}

func (r *AccountRepo) UpdatePassword(ctx context.Context, email, passwordHash string) error {
	return r.update(email, func(a *domain.Account) { a.PasswordHash = passwordHash })
}

func (r *AccountRepo) UpdateProfile(_ context.Context, email string, u domain.ProfileUpdate) error {
	return r.update(email, func(a *domain.Account) {
		if u.Username != nil {
			a.Username = *u.Username
		}
		if u.Address != nil {
			a.Address = *u.Address
		}
		if u.Phone != nil {
			a.Phone = *u.Phone
		}
	})
}

func (r *AccountRepo) update(email string, fn func(*domain.Account)) error {
	found := false
	r.accounts.Compute(key(email), func(old domain.Account, loaded bool) (domain.Account, bool) {
		if !loaded {
			return old, true
		}
		found = true
		fn(&old)
		old.UpdatedAt = time.Now().UTC()
		return old, false
	})
	if !found {
		return fmt.Errorf("account not found: %w", domain.ErrNotFound)
	}
	return nil
}
