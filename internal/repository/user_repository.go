package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/maintenance-auth/internal/database"
	"github.com/iliyamo/maintenance-auth/internal/model"
)

// userColumns maps nullable columns to their zero values so rows scan
// straight into model.User.
var userColumns = []string{
	"id",
	"email",
	"COALESCE(password_hash, '') AS password_hash",
	"fname",
	"lname",
	"COALESCE(profile_img, '') AS profile_img",
	"COALESCE(status, '') AS status",
	"email_confirmed",
	"created_at",
}

// UserRepo reads and writes the 'users' table.  DB is either the pool or a
// transaction obtained through WithTx.
type UserRepo struct{ DB sqlx.ExtContext }

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{DB: db} }

// WithTx returns a copy of the repository bound to tx.
func (r *UserRepo) WithTx(tx *sqlx.Tx) *UserRepo { return &UserRepo{DB: tx} }

// NormalizeEmail lower-cases and trims an address.  Every lookup goes through
// it so the stored email is the canonical identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Create inserts u and returns its ID.  u.ID and u.CreatedAt are filled in.
func (r *UserRepo) Create(ctx context.Context, u *model.User) (uint64, error) {
	u.Email = NormalizeEmail(u.Email)
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	q := database.Builder(r.DB).
		Insert("users").
		Columns("email", "password_hash", "fname", "lname", "profile_img", "status", "email_confirmed", "created_at").
		Values(u.Email, nullable(u.PasswordHash), u.FName, u.LName, nullable(u.ProfileImg),
			nullable(string(u.Status)), u.EmailConfirmed, u.CreatedAt)

	var id uint64
	if r.DB.DriverName() == database.Postgres {
		query, args, err := q.Suffix("RETURNING id").ToSql()
		if err != nil {
			return 0, err
		}
		if err := r.DB.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			if isDuplicate(err) {
				return 0, ErrEmailExists
			}
			return 0, err
		}
	} else {
		query, args, err := q.ToSql()
		if err != nil {
			return 0, err
		}
		res, err := r.DB.ExecContext(ctx, query, args...)
		if err != nil {
			if isDuplicate(err) {
				return 0, ErrEmailExists
			}
			return 0, err
		}
		last, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		id = uint64(last)
	}
	u.ID = id
	return id, nil
}

func (r *UserRepo) getOne(ctx context.Context, where sq.Eq) (model.User, error) {
	query, args, err := database.Builder(r.DB).
		Select(userColumns...).
		From("users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var u model.User
	if err := sqlx.GetContext(ctx, r.DB, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.getOne(ctx, sq.Eq{"email": NormalizeEmail(email)})
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.getOne(ctx, sq.Eq{"id": id})
}

// Exists reports whether the address is registered.
func (r *UserRepo) Exists(ctx context.Context, email string) (bool, error) {
	query, args, err := database.Builder(r.DB).
		Select("COUNT(*)").
		From("users").
		Where(sq.Eq{"email": NormalizeEmail(email)}).
		ToSql()
	if err != nil {
		return false, err
	}
	var n int
	if err := sqlx.GetContext(ctx, r.DB, &n, query, args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// update applies set to the user identified by email.  ErrNotFound when no
// row matches.
func (r *UserRepo) update(ctx context.Context, email string, set map[string]any) error {
	query, args, err := database.Builder(r.DB).
		Update("users").
		SetMap(set).
		Where(sq.Eq{"email": NormalizeEmail(email)}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports 0 for a no-op update; tell it apart from a missing row.
		if ok, err := r.Exists(ctx, email); err != nil {
			return err
		} else if ok {
			return nil
		}
		return ErrNotFound
	}
	return nil
}

// UpdatePassword stores a new bcrypt digest.  Callers hash first.
func (r *UserRepo) UpdatePassword(ctx context.Context, email, hash string) error {
	return r.update(ctx, email, map[string]any{"password_hash": nullable(hash)})
}

// ConfirmEmail marks the address as confirmed.
func (r *UserRepo) ConfirmEmail(ctx context.Context, email string) error {
	return r.update(ctx, email, map[string]any{"email_confirmed": true})
}

// UpdateProfile replaces the editable profile fields.
func (r *UserRepo) UpdateProfile(ctx context.Context, email, fname, lname, profileImg string) error {
	return r.update(ctx, email, map[string]any{
		"fname":       fname,
		"lname":       lname,
		"profile_img": nullable(profileImg),
	})
}

// SetStatus changes the account status.  UserStatusUnset clears the column.
func (r *UserRepo) SetStatus(ctx context.Context, email string, status model.UserStatus) error {
	return r.update(ctx, email, map[string]any{"status": nullable(string(status))})
}
