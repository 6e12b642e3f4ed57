// Package pending holds short-lived credentials (OTPs and approval tokens)
// awaiting confirmation.
//
// Every operation on a key runs inside that key's critical section of the
// underlying concurrent map, so insert, read, consume and replace are
// linearizable per key. Consume-style operations succeed for at most one
// caller; later callers observe ErrNotFound.
//
// Expired records are never returned. A read that finds one evicts it and
// reports ErrExpired; Sweep evicts the rest.
package pending

import (
	"context"
	"errors"
	"time"

	"github.com/go-storefront-auth/internal/domain"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

var (
	ErrNotFound = errors.New("pending: credential not found")
	ErrExpired  = errors.New("pending: credential expired")
	ErrMismatch = errors.New("pending: credential mismatch")
)

// Purpose namespaces keys so that flows keyed by the same identity never share a record.
type Purpose string

const (
	PurposeRegister   Purpose = "register"
	PurposeUserReset  Purpose = "reset:user"
	PurposeAdminReset Purpose = "reset:admin"
	PurposeApproval   Purpose = "approval"
)

// Kind selects the TTL applied to a record.
type Kind int

const (
	KindOTP Kind = iota
	KindApprovalToken
)

func (k Kind) String() string {
	switch k {
	case KindOTP:
		return "otp"
	case KindApprovalToken:
		return "approval_token"
	default:
		return "unknown"
	}
}

// Key identifies a record: an identity (email) or an opaque token, scoped by purpose.
type Key struct {
	Purpose Purpose
	ID      string
}

// Record is a pending credential.
type Record struct {
	Key      Key
	Kind     Kind
	Code     string
	Payload  *domain.PendingAccount
	Verified bool
	IssuedAt time.Time
}

// Config sets the per-kind lifetimes. A non-positive TTL disables expiry for that kind.
type Config struct {
	OTPTTL      time.Duration
	ApprovalTTL time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the process-wide pending-credential store. The zero value is not usable; call NewStore.
type Store struct {
	records *xsync.MapOf[Key, Record]
	cfg     Config
	now     func() time.Time
}

func NewStore(cfg Config, opts ...Option) *Store {
	s := &Store{
		records: xsync.NewMapOf[Key, Record](),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the lifetime of records of kind k.
func (s *Store) TTL(k Kind) time.Duration {
	if k == KindApprovalToken {
		return s.cfg.ApprovalTTL
	}
	return s.cfg.OTPTTL
}

// Put inserts rec under its key, superseding any live record for that key.
// IssuedAt is set to the current time.
func (s *Store) Put(rec Record) {
	rec.IssuedAt = s.now()
	rec.Payload = clonePayload(rec.Payload)
	s.records.Store(rec.Key, rec)
}

// Peek returns the live record for key without consuming it.
func (s *Store) Peek(key Key) (Record, error) {
	return s.apply(key, func(Record) (next Record, keep bool, err error) {
		return Record{}, true, nil
	})
}

// Consume removes and returns the live record for key.
func (s *Store) Consume(key Key) (Record, error) {
	return s.ConsumeIf(key, nil)
}

// ConsumeIf removes and returns the live record for key when match accepts it.
// A rejected record stays in place and ErrMismatch is returned.
func (s *Store) ConsumeIf(key Key, match func(Record) bool) (Record, error) {
	return s.apply(key, func(cur Record) (Record, bool, error) {
		if match != nil && !match(cur) {
			return Record{}, true, ErrMismatch
		}
		return Record{}, false, nil
	})
}

// ReplaceIf swaps the live record for key with next(cur) when match accepts it.
// The replacement is stamped with a fresh IssuedAt, restarting its TTL.
// The returned record is the one that was replaced.
func (s *Store) ReplaceIf(key Key, match func(Record) bool, next func(Record) Record) (Record, error) {
	return s.apply(key, func(cur Record) (Record, bool, error) {
		if match != nil && !match(cur) {
			return Record{}, true, ErrMismatch
		}
		repl := next(cur)
		repl.Key = key
		repl.IssuedAt = s.now()
		repl.Payload = clonePayload(repl.Payload)
		return repl, true, nil
	})
}

// Restore puts back a record previously taken by Consume or ConsumeIf.
// It inserts only when the key is still vacant, so a newer Put wins, and it
// keeps rec.IssuedAt so the original TTL is not extended.
// It reports whether the record was reinstated.
func (s *Store) Restore(rec Record) bool {
	if rec.Key == (Key{}) {
		return false
	}
	rec.Payload = clonePayload(rec.Payload)
	_, loaded := s.records.LoadOrStore(rec.Key, rec)
	return !loaded
}

// Delete drops any record for key.
func (s *Store) Delete(key Key) {
	s.records.Delete(key)
}

// Expired reports whether a record exists for key and its TTL has elapsed.
func (s *Store) Expired(key Key) bool {
	rec, ok := s.records.Load(key)
	return ok && s.expired(rec, s.now())
}

// Len returns the number of stored records, expired ones included.
func (s *Store) Len() int {
	return s.records.Size()
}

// Sweep evicts every expired record and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.now()
	var stale []Key
	s.records.Range(func(k Key, rec Record) bool {
		if s.expired(rec, now) {
			stale = append(stale, k)
		}
		return true
	})
	removed := 0
	for _, k := range stale {
		// Re-check under the key lock: the record may have been superseded.
		s.records.Compute(k, func(cur Record, loaded bool) (Record, bool) {
			if loaded && s.expired(cur, now) {
				removed++
				return cur, true
			}
			return cur, !loaded
		})
	}
	return removed
}

// Run sweeps on every tick of interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				log.Debug().Int("evicted", n).Msg("swept expired pending credentials")
			}
		}
	}
}

// apply runs fn on the live record for key inside the key's critical section.
// fn returns the value to store, whether to keep an entry at all, and an error.
// When fn returns an error the current record is left untouched.
func (s *Store) apply(key Key, fn func(cur Record) (next Record, keep bool, err error)) (Record, error) {
	var (
		out Record
		err error
	)
	now := s.now()
	s.records.Compute(key, func(cur Record, loaded bool) (Record, bool) {
		if !loaded {
			err = ErrNotFound
			return cur, true
		}
		if s.expired(cur, now) {
			err = ErrExpired
			return cur, true
		}
		next, keep, fnErr := fn(cur)
		if fnErr != nil {
			err = fnErr
			return cur, false
		}
		out = cur
		out.Payload = clonePayload(cur.Payload)
		if !keep {
			return cur, true
		}
		if next.Key == (Key{}) {
			return cur, false
		}
		return next, false
	})
	return out, err
}

func (s *Store) expired(rec Record, now time.Time) bool {
	ttl := s.TTL(rec.Kind)
	if ttl <= 0 {
		return false
	}
	return now.Sub(rec.IssuedAt) > ttl
}

func clonePayload(p *domain.PendingAccount) *domain.PendingAccount {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
