package onboarding

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-storefront-auth/internal/domain"
	"github.com/go-storefront-auth/internal/infrastructure/memory"
	"github.com/go-storefront-auth/internal/infrastructure/pending"
	"github.com/go-storefront-auth/internal/infrastructure/smtp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureMail struct {
	mu   sync.Mutex
	msgs []smtp.Message
}

func (m *captureMail) SendAsync(msg smtp.Message) {
	m.mu.Lock()
	m.msgs = append(m.msgs, msg)
	m.mu.Unlock()
}

func (m *captureMail) to(addr string) []smtp.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []smtp.Message
	for _, msg := range m.msgs {
		if msg.To == addr {
			out = append(out, msg)
		}
	}
	return out
}

var confirmLink = regexp.MustCompile(`https://shop\.test/api/admin/confirm/([A-Za-z0-9_-]+)`)

type fixture struct {
	svc   Service
	repo  *memory.AccountRepo
	store *pending.Store
	mail  *captureMail
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	f := &fixture{
		repo:  memory.NewAccountRepo(),
		store: pending.NewStore(pending.Config{OTPTTL: 10 * time.Minute, ApprovalTTL: 30 * time.Minute}, pending.WithClock(clock.Now)),
		mail:  &captureMail{},
		clock: clock,
	}
	f.svc = NewService(ServiceDeps{
		AdminRepo: f.repo,
		Pending:   f.store,
		Mail:      f.mail,
		Approvers: []string{"owner@shop.test", "ops@shop.test"},
		BaseURL:   "https://shop.test/",
		Log:       zerolog.Nop(),
	})
	return f
}

func adminSignup() domain.SignupRequest {
	return domain.SignupRequest{
		Username: "boss",
		Email:    "boss@example.com",
		Password: "admin-password",
		Phone:    "555-0199",
		Address:  "HQ",
	}
}

// start begins onboarding and returns the token mailed to the first approver.
func (f *fixture) start(t *testing.T) string {
	t.Helper()
	_, err := f.svc.Start(context.Background(), adminSignup())
	require.NoError(t, err)
	msgs := f.mail.to("owner@shop.test")
	require.NotEmpty(t, msgs)
	m := confirmLink.FindStringSubmatch(msgs[len(msgs)-1].Body)
	require.Len(t, m, 2)
	return m[1]
}

func TestStart_MailsApproversAndRequester(t *testing.T) {
	f := newFixture(t)
	req, err := f.svc.Start(context.Background(), adminSignup())
	require.NoError(t, err)
	assert.Len(t, req.Reference, 6)
	assert.Equal(t, 30*time.Minute, req.ExpiresIn)

	for _, approver := range []string{"owner@shop.test", "ops@shop.test"} {
		msgs := f.mail.to(approver)
		require.Len(t, msgs, 1, approver)
		assert.True(t, msgs[0].HTML)
		assert.Equal(t, "Admin Registration Approval Needed", msgs[0].Subject)
		assert.Contains(t, msgs[0].Body, "https://shop.test/api/admin/confirm/")
		assert.Contains(t, msgs[0].Body, "https://shop.test/api/admin/reject/")
		assert.Contains(t, msgs[0].Body, req.Reference)
	}

	notices := f.mail.to("boss@example.com")
	require.Len(t, notices, 1)
	assert.False(t, notices[0].HTML)
	assert.Contains(t, notices[0].Body, req.Reference)
	assert.NotContains(t, notices[0].Body, "/api/admin/confirm/", "the requester never sees the approval link")

	ok, _ := f.repo.ExistsByEmail(context.Background(), "boss@example.com")
	assert.False(t, ok, "nothing is persisted before approval")
}

func TestStart_EscapesApplicantFields(t *testing.T) {
	f := newFixture(t)
	req := adminSignup()
	req.Username = `<script>alert(1)</script>`
	_, err := f.svc.Start(context.Background(), req)
	require.NoError(t, err)

	body := f.mail.to("owner@shop.test")[0].Body
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestStart_ExistingAdminConflicts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.repo.Save(context.Background(), &domain.Account{Email: "boss@example.com"}))

	_, err := f.svc.Start(context.Background(), adminSignup())
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Zero(t, f.store.Len())
}

func TestStart_InvalidRequest(t *testing.T) {
	f := newFixture(t)
	req := adminSignup()
	req.Password = "x"
	_, err := f.svc.Start(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestConfirm_CreatesApprovedAdminOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.start(t)

	a, err := f.svc.Confirm(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, a.Role)
	assert.True(t, a.Approved)
	assert.Equal(t, "boss@example.com", a.Email)

	approved := f.mail.to("boss@example.com")
	require.Len(t, approved, 2)
	assert.Equal(t, "Admin Registration Approved", approved[1].Subject)

	_, err = f.svc.Confirm(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
	assert.Len(t, f.mail.to("boss@example.com"), 2, "a repeated confirm has no side effects")
}

func TestReject_ThenConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	token := f.start(t)

	require.NoError(t, f.svc.Reject(ctx, token))
	msgs := f.mail.to("boss@example.com")
	require.Len(t, msgs, 2)
	assert.Equal(t, "Admin Registration Rejected", msgs[1].Subject)

	_, err := f.svc.Confirm(ctx, token)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, f.svc.Reject(ctx, token), domain.ErrInvalidOrExpiredToken)

	ok, _ := f.repo.ExistsByEmail(ctx, "boss@example.com")
	assert.False(t, ok)
}

func TestConfirm_ExpiredToken(t *testing.T) {
	f := newFixture(t)
	token := f.start(t)
	f.clock.Advance(31 * time.Minute)

	_, err := f.svc.Confirm(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
	assert.Zero(t, f.store.Len())
}

func TestConfirm_UnknownToken(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Confirm(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
	_, err = f.svc.Confirm(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpiredToken)
}

func TestConfirm_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	token := f.start(t)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(confirm bool) {
			defer wg.Done()
			var err error
			if confirm {
				_, err = f.svc.Confirm(context.Background(), token)
			} else {
				err = f.svc.Reject(context.Background(), token)
			}
			if err == nil {
				wins.Add(1)
			}
		}(i%2 == 0)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

// flakyRepo fails the first n saves with a transient error.
type flakyRepo struct {
	*memory.AccountRepo
	failures atomic.Int32
}

var errThrottled = errors.New("dynamo: throughput exceeded")

func (r *flakyRepo) Save(ctx context.Context, a *domain.Account) error {
	if r.failures.Add(-1) >= 0 {
		return errThrottled
	}
	return r.AccountRepo.Save(ctx, a)
}

func TestConfirm_TransientSaveFailureKeepsToken(t *testing.T) {
	f := newFixture(t)
	repo := &flakyRepo{AccountRepo: f.repo}
	repo.failures.Store(1)
	f.svc = NewService(ServiceDeps{
		AdminRepo: repo,
		Pending:   f.store,
		Mail:      f.mail,
		Approvers: []string{"owner@shop.test"},
		BaseURL:   "https://shop.test",
		Log:       zerolog.Nop(),
	})
	ctx := context.Background()
	token := f.start(t)

	_, err := f.svc.Confirm(ctx, token)
	require.ErrorIs(t, err, errThrottled)
	assert.Equal(t, 1, f.store.Len())
	assert.Len(t, f.mail.to("boss@example.com"), 1, "no approval mail after a failed save")

	a, err := f.svc.Confirm(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "boss@example.com", a.Email)
	assert.Zero(t, f.store.Len())
}

func TestStart_RenderFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(ServiceDeps{
		AdminRepo: f.repo,
		Pending:   f.store,
		Mail:      f.mail,
		Approvers: []string{"owner@shop.test", "  "},
		BaseURL:   "https://shop.test",
		Log:       zerolog.Nop(),
	})

	_, err := f.svc.Start(context.Background(), adminSignup())
	require.Error(t, err)
	assert.Zero(t, f.store.Len())
	assert.Empty(t, f.mail.to("owner@shop.test"))
	assert.Empty(t, f.mail.to("boss@example.com"))
}

func TestNewService_NoApprovers(t *testing.T) {
	svc := NewService(ServiceDeps{
		AdminRepo: memory.NewAccountRepo(),
		Pending:   pending.NewStore(pending.Config{OTPTTL: time.Minute, ApprovalTTL: time.Minute}),
		Mail:      &captureMail{},
		Log:       zerolog.Nop(),
	})
	_, err := svc.Start(context.Background(), adminSignup())
	assert.Error(t, err)
}
