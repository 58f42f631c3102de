package models

import "time"

// AuthToken purposes
const (
	TokenAuth  = "auth"
	TokenReset = "reset"
)

// AuthToken is an opaque server-side credential. Auth tokens live until
// revoked; reset tokens expire and are deleted on first use.
type AuthToken struct {
	Token   string `gorm:"primaryKey;size:64" json:"-"`
	UserID  uint   `gorm:"not null;index" json:"-"`
	Purpose string `gorm:"not null;default:'auth'" json:"-"` // auth, reset

	ExpiresAt *time.Time `json:"-"`
	CreatedAt time.Time  `json:"-"`

	User User `json:"-"`
}

// Expired reports whether the token is past its expiry. Tokens without
// an expiry never expire.
func (t *AuthToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}
