package repository

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/maintenance-auth/internal/database"
	"github.com/iliyamo/maintenance-auth/internal/model"
)

var dbSeq atomic.Int64

func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenMemory(fmt.Sprintf("repo_test_%d", dbSeq.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, users *UserRepo, email string) model.User {
	t.Helper()
	u := model.User{
		Email:        email,
		PasswordHash: "$2a$04$hash",
		FName:        "Ada",
		LName:        "Lovelace",
		Status:       model.UserStatusActive,
	}
	_, err := users.Create(context.Background(), &u)
	require.NoError(t, err)
	return u
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepo(newTestDB(t))

	created := seedUser(t, users, "  Ada@Example.COM ")
	assert.NotZero(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)

	t.Run("GetByEmail normalises input", func(t *testing.T) {
		u, err := users.GetByEmail(ctx, "ADA@example.com")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
		assert.Equal(t, model.UserStatusActive, u.Status)
		assert.False(t, u.EmailConfirmed)
		assert.Equal(t, "", u.ProfileImg)
	})

	t.Run("GetByID", func(t *testing.T) {
		u, err := users.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", u.Email)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := users.GetByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := model.User{Email: "ada@example.com", FName: "A", LName: "B"}
		_, err := users.Create(ctx, &dup)
		assert.ErrorIs(t, err, ErrEmailExists)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := users.Exists(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.True(t, ok)
		ok, err = users.Exists(ctx, "other@example.com")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("updates", func(t *testing.T) {
		require.NoError(t, users.ConfirmEmail(ctx, "ada@example.com"))
		require.NoError(t, users.UpdatePassword(ctx, "ada@example.com", "$2a$04$other"))
		require.NoError(t, users.UpdateProfile(ctx, "ada@example.com", "Grace", "Hopper", "https://img/x.png"))
		require.NoError(t, users.SetStatus(ctx, "ada@example.com", model.UserStatusInactive))

		u, err := users.GetByEmail(ctx, "ada@example.com")
		require.NoError(t, err)
		assert.True(t, u.EmailConfirmed)
		assert.Equal(t, "$2a$04$other", u.PasswordHash)
		assert.Equal(t, "Grace", u.FName)
		assert.Equal(t, "https://img/x.png", u.ProfileImg)
		assert.Equal(t, model.UserStatusInactive, u.Status)

		// repeating an update is not an error
		require.NoError(t, users.ConfirmEmail(ctx, "ada@example.com"))
	})

	t.Run("update missing user", func(t *testing.T) {
		err := users.ConfirmEmail(ctx, "ghost@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestUserRepoExternalAccount(t *testing.T) {
	ctx := context.Background()
	users := NewUserRepo(newTestDB(t))

	u := model.User{Email: "sso@example.com", FName: "Sso", LName: "User"}
	_, err := users.Create(ctx, &u)
	require.NoError(t, err)

	got, err := users.GetByEmail(ctx, "sso@example.com")
	require.NoError(t, err)
	assert.False(t, got.HasPassword())
	assert.Equal(t, model.UserStatusUnset, got.Status)
}

func TestTokenRepo(t *testing.T) {
	ctx := context.Background()
	tokens := NewTokenRepo(newTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	insert := func(jti, identity string, exp time.Time) {
		t.Helper()
		require.NoError(t, tokens.Insert(ctx, &model.TokenRecord{
			JTI:          jti,
			TokenType:    model.TokenAccess,
			UserIdentity: identity,
			ExpiresAt:    exp,
		}))
	}

	insert("a1", "ada@example.com", now.Add(time.Hour))
	insert("a2", "ada@example.com", now.Add(time.Hour))
	insert("b1", "bob@example.com", now.Add(time.Hour))
	insert("old", "bob@example.com", now.Add(-time.Hour))

	t.Run("duplicate jti", func(t *testing.T) {
		err := tokens.Insert(ctx, &model.TokenRecord{JTI: "a1", TokenType: model.TokenAccess, UserIdentity: "x", ExpiresAt: now})
		assert.ErrorIs(t, err, ErrDuplicateJTI)
	})

	t.Run("Get", func(t *testing.T) {
		rec, err := tokens.Get(ctx, "a1")
		require.NoError(t, err)
		assert.False(t, rec.Revoked)
		assert.Nil(t, rec.RevokedAt)
		assert.Equal(t, model.TokenAccess, rec.TokenType)
		assert.True(t, now.Add(time.Hour).Equal(rec.ExpiresAt))

		_, err = tokens.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Revoke keeps first timestamp", func(t *testing.T) {
		changed, err := tokens.Revoke(ctx, "a1", now)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = tokens.Revoke(ctx, "a1", now.Add(time.Minute))
		require.NoError(t, err)
		assert.False(t, changed)

		rec, err := tokens.Get(ctx, "a1")
		require.NoError(t, err)
		assert.True(t, rec.Revoked)
		require.NotNil(t, rec.RevokedAt)
		assert.True(t, now.Equal(*rec.RevokedAt))
	})

	t.Run("RevokeAllForIdentity", func(t *testing.T) {
		active, err := tokens.ActiveForIdentity(ctx, "ada@example.com")
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "a2", active[0].JTI)

		n, err := tokens.RevokeAllForIdentity(ctx, "ada@example.com", now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = tokens.RevokeAllForIdentity(ctx, "nobody@example.com", now)
		require.NoError(t, err)
		assert.Zero(t, n)

		rec, err := tokens.Get(ctx, "b1")
		require.NoError(t, err)
		assert.False(t, rec.Revoked)
	})

	t.Run("DeleteExpired", func(t *testing.T) {
		n, err := tokens.DeleteExpired(ctx, now)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = tokens.Get(ctx, "old")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tokens.Get(ctx, "b1")
		assert.NoError(t, err)
	})
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	users := NewUserRepo(db)
	seedUser(t, users, "ada@example.com")

	err := InTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := users.WithTx(tx).ConfirmEmail(ctx, "ada@example.com"); err != nil {
			return err
		}
		return fmt.Errorf("boom")
	})
	require.Error(t, err)

	u, err := users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.False(t, u.EmailConfirmed)

	err = InTx(ctx, db, func(tx *sqlx.Tx) error {
		return users.WithTx(tx).ConfirmEmail(ctx, "ada@example.com")
	})
	require.NoError(t, err)
	u, err = users.GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.True(t, u.EmailConfirmed)
}
