// Package ledger tracks every issued bearer token by jti so tokens can be
// revoked before they expire.  A token is valid only while its row exists and
// is not revoked; any doubt answers invalid.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/maintenance-auth/internal/metrics"
	"github.com/iliyamo/maintenance-auth/internal/model"
	"github.com/iliyamo/maintenance-auth/internal/repository"
	"github.com/iliyamo/maintenance-auth/internal/token"
)

// RevocationCache mirrors revoked jtis in a fast store.  It may only ever
// add negatives: a miss says nothing and the table is consulted.
type RevocationCache interface {
	MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Ledger records and revokes tokens on top of the token_blocklist table.
type Ledger struct {
	tokens *repository.TokenRepo
	cache  RevocationCache
	now    func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithCache enables the revocation fast path.  A nil cache is ignored.
func WithCache(c RevocationCache) Option {
	return func(l *Ledger) {
		if c != nil {
			l.cache = c
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New returns a ledger backed by tokens.
func New(tokens *repository.TokenRepo, opts ...Option) *Ledger {
	l := &Ledger{tokens: tokens, now: time.Now}
	for _, fn := range opts {
		fn(l)
	}
	return l
}

// WithTx returns a ledger whose writes join tx.  Cache writes are not
// transactional; a rolled-back revocation may stay cached until the token
// expires, which only ever rejects a token early.
func (l *Ledger) WithTx(tx *sqlx.Tx) *Ledger {
	return &Ledger{tokens: l.tokens.WithTx(tx), cache: l.cache, now: l.now}
}

// Record stores a non-revoked row for issued.  The token must not be handed
// out unless this returns nil.
func (l *Ledger) Record(ctx context.Context, issued token.Issued) error {
	rec := issued.Record()
	if err := l.tokens.Insert(ctx, &rec); err != nil {
		return fmt.Errorf("record token %s: %w", issued.JTI, err)
	}
	metrics.TokensIssued.WithLabelValues(string(issued.Type)).Inc()
	return nil
}

// IsValid reports whether jti is recorded and not revoked.  Storage errors
// answer false.
func (l *Ledger) IsValid(ctx context.Context, jti string) bool {
	if jti == "" {
		metrics.ValidityChecks.WithLabelValues("unknown").Inc()
		return false
	}
	if l.cache != nil {
		revoked, err := l.cache.IsRevoked(ctx, jti)
		if err != nil {
			log.Warnf("ledger: revocation cache lookup for %s: %v", jti, err)
		} else if revoked {
			metrics.ValidityChecks.WithLabelValues("revoked").Inc()
			return false
		}
	}
	rec, err := l.tokens.Get(ctx, jti)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		metrics.ValidityChecks.WithLabelValues("unknown").Inc()
		return false
	case err != nil:
		log.Errorf("ledger: validity check for %s: %v", jti, err)
		metrics.ValidityChecks.WithLabelValues("error").Inc()
		return false
	case rec.Revoked:
		metrics.ValidityChecks.WithLabelValues("revoked").Inc()
		return false
	}
	metrics.ValidityChecks.WithLabelValues("valid").Inc()
	return true
}

// Revoke marks jti revoked.  Revoking an already revoked or unknown jti is a
// no-op; the first revocation time is kept.
func (l *Ledger) Revoke(ctx context.Context, jti string) error {
	_, err := l.Consume(ctx, jti)
	return err
}

// Consume revokes jti and reports whether this call was the one that flipped
// it.  Single-use tokens are accepted only by the winning caller.
func (l *Ledger) Consume(ctx context.Context, jti string) (bool, error) {
	rec, err := l.tokens.Get(ctx, jti)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("revoke %s: %w", jti, err)
	}
	if rec.Revoked {
		return false, nil
	}
	changed, err := l.tokens.Revoke(ctx, jti, l.now())
	if err != nil {
		return false, fmt.Errorf("revoke %s: %w", jti, err)
	}
	if changed {
		metrics.TokensRevoked.WithLabelValues("single").Inc()
		l.mirror(ctx, jti, rec.ExpiresAt)
	}
	return changed, nil
}

// RevokeAllForIdentity revokes every active token owned by identity and
// returns how many were revoked.  No rows is not an error.
func (l *Ledger) RevokeAllForIdentity(ctx context.Context, identity string) (int64, error) {
	var active []model.TokenRecord
	if l.cache != nil {
		recs, err := l.tokens.ActiveForIdentity(ctx, identity)
		if err != nil {
			return 0, fmt.Errorf("revoke all for %s: %w", identity, err)
		}
		active = recs
	}
	n, err := l.tokens.RevokeAllForIdentity(ctx, identity, l.now())
	if err != nil {
		return 0, fmt.Errorf("revoke all for %s: %w", identity, err)
	}
	metrics.TokensRevoked.WithLabelValues("identity").Add(float64(n))
	for _, r := range active {
		l.mirror(ctx, r.JTI, r.ExpiresAt)
	}
	return n, nil
}

// Prune deletes rows that expired before now.  It only reclaims storage;
// expired tokens already fail signature-level validation.
func (l *Ledger) Prune(ctx context.Context, now time.Time) (int64, error) {
	n, err := l.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("prune ledger: %w", err)
	}
	metrics.TokensPruned.Add(float64(n))
	return n, nil
}

func (l *Ledger) mirror(ctx context.Context, jti string, expiresAt time.Time) {
	if l.cache == nil {
		return
	}
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return
	}
	if err := l.cache.MarkRevoked(ctx, jti, ttl); err != nil {
		log.Warnf("ledger: caching revocation of %s: %v", jti, err)
	}
}
