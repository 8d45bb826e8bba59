package model

import "time"

// UserStatus is the account status stored in users.status.  The empty value
// means the column is NULL (status never set).
type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
	UserStatusUnset    UserStatus = ""
)

// DefaultProfileImage is reported for users without a profile_img.
const DefaultProfileImage = "https://server.com/default.png"

// User represents an application user record as stored in the `users`
// table.  The email is lower-cased and doubles as the identity string placed
// in token subjects and in token_blocklist.user_identity.
//
// Fields:
//
//	ID             – primary key identifier of the user.
//	Email          – unique, normalised email address.
//	PasswordHash   – bcrypt digest; empty for externally authenticated accounts.
//	FName, LName   – title-cased names.
//	ProfileImg     – optional avatar URL.
//	Status         – active, inactive or unset.
//	EmailConfirmed – whether the address went through confirmation.
//	CreatedAt      – timestamp of creation.
type User struct {
	ID             uint64     `db:"id"`
	Email          string     `db:"email"`
	PasswordHash   string     `db:"password_hash"`
	FName          string     `db:"fname"`
	LName          string     `db:"lname"`
	ProfileImg     string     `db:"profile_img"`
	Status         UserStatus `db:"status"`
	EmailConfirmed bool       `db:"email_confirmed"`
	CreatedAt      time.Time  `db:"created_at"`
}

// IsActive reports whether the account may obtain new tokens.
func (u User) IsActive() bool { return u.Status == UserStatusActive }

// HasPassword is false for accounts that authenticate elsewhere.
func (u User) HasPassword() bool { return u.PasswordHash != "" }

// Profile is the serialised, client-safe view of a user.
type Profile struct {
	ID             uint64     `json:"id"`
	Email          string     `json:"email"`
	FName          string     `json:"fname"`
	LName          string     `json:"lname"`
	ProfileImg     string     `json:"profile_img"`
	Status         UserStatus `json:"user_status"`
	EmailConfirmed bool       `json:"email_confirmed"`
	UserSince      time.Time  `json:"user_since"`
}

// Profile returns the public view of u.
func (u User) Profile() Profile {
	img := u.ProfileImg
	if img == "" {
		img = DefaultProfileImage
	}
	return Profile{
		ID:             u.ID,
		Email:          u.Email,
		FName:          u.FName,
		LName:          u.LName,
		ProfileImg:     img,
		Status:         u.Status,
		EmailConfirmed: u.EmailConfirmed,
		UserSince:      u.CreatedAt,
	}
}
