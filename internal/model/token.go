package model

import "time"

// TokenType tags what an issued token may be used for.
type TokenType string

const (
	TokenAccess       TokenType = "access"
	TokenVerification TokenType = "verification"
	TokenVerified     TokenType = "verified"
)

// TokenRecord models an entry in the `token_blocklist` table.  Every issued
// bearer token has exactly one row; a jti without a row is never valid.
//
// Fields:
//
//	ID           – primary key identifier.
//	JTI          – the token's unique id.
//	TokenType    – access, verification or verified.
//	UserIdentity – owner email copied at issuance.
//	Revoked      – flips to true once and stays there.
//	RevokedAt    – when the first revocation happened (null if still valid).
//	ExpiresAt    – copy of the token's exp claim.
type TokenRecord struct {
	ID           uint64     `db:"id"`
	JTI          string     `db:"jti"`
	TokenType    TokenType  `db:"token_type"`
	UserIdentity string     `db:"user_identity"`
	Revoked      bool       `db:"revoked"`
	RevokedAt    *time.Time `db:"revoked_at"`
	ExpiresAt    time.Time  `db:"expires_at"`
}
