package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/maintenance-auth/internal/database"
	"github.com/iliyamo/maintenance-auth/internal/model"
)

// TokenRepo persists one row per issued token in 'token_blocklist'.
// revoked only ever moves from false to true.
type TokenRepo struct{ DB sqlx.ExtContext }

func NewTokenRepo(db sqlx.ExtContext) *TokenRepo { return &TokenRepo{DB: db} }

// WithTx returns a copy of the repository bound to tx.
func (r *TokenRepo) WithTx(tx *sqlx.Tx) *TokenRepo { return &TokenRepo{DB: tx} }

func dbTime(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

// Insert stores a fresh, non-revoked row for rec.
func (r *TokenRepo) Insert(ctx context.Context, rec *model.TokenRecord) error {
	query, args, err := database.Builder(r.DB).
		Insert("token_blocklist").
		Columns("jti", "token_type", "user_identity", "revoked", "expires_at").
		Values(rec.JTI, string(rec.TokenType), rec.UserIdentity, false, dbTime(rec.ExpiresAt)).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.DB.ExecContext(ctx, query, args...); err != nil {
		if isDuplicate(err) {
			return ErrDuplicateJTI
		}
		return err
	}
	return nil
}

// Get returns the row for jti or ErrNotFound.
func (r *TokenRepo) Get(ctx context.Context, jti string) (model.TokenRecord, error) {
	query, args, err := database.Builder(r.DB).
		Select("id", "jti", "token_type", "user_identity", "revoked", "revoked_at", "expires_at").
		From("token_blocklist").
		Where(sq.Eq{"jti": jti}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.TokenRecord{}, err
	}
	var rec model.TokenRecord
	if err := sqlx.GetContext(ctx, r.DB, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.TokenRecord{}, ErrNotFound
		}
		return model.TokenRecord{}, err
	}
	return rec, nil
}

// Revoke flips revoked for jti.  The first revoked_at is kept; the returned
// bool is true only for the call that changed the row.
func (r *TokenRepo) Revoke(ctx context.Context, jti string, at time.Time) (bool, error) {
	query, args, err := database.Builder(r.DB).
		Update("token_blocklist").
		Set("revoked", true).
		Set("revoked_at", dbTime(at)).
		Where(sq.Eq{"jti": jti, "revoked": false}).
		ToSql()
	if err != nil {
		return false, err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ActiveForIdentity lists the non-revoked rows owned by identity.
func (r *TokenRepo) ActiveForIdentity(ctx context.Context, identity string) ([]model.TokenRecord, error) {
	query, args, err := database.Builder(r.DB).
		Select("id", "jti", "token_type", "user_identity", "revoked", "revoked_at", "expires_at").
		From("token_blocklist").
		Where(sq.Eq{"user_identity": identity, "revoked": false}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var recs []model.TokenRecord
	if err := sqlx.SelectContext(ctx, r.DB, &recs, query, args...); err != nil {
		return nil, err
	}
	return recs, nil
}

// RevokeAllForIdentity revokes every non-revoked row owned by identity and
// returns how many rows changed.
func (r *TokenRepo) RevokeAllForIdentity(ctx context.Context, identity string, at time.Time) (int64, error) {
	query, args, err := database.Builder(r.DB).
		Update("token_blocklist").
		Set("revoked", true).
		Set("revoked_at", dbTime(at)).
		Where(sq.Eq{"user_identity": identity, "revoked": false}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired removes rows whose expires_at lies strictly before cutoff.
func (r *TokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query, args, err := database.Builder(r.DB).
		Delete("token_blocklist").
		Where(sq.Lt{"expires_at": dbTime(cutoff)}).
		ToSql()
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
