package models

import "time"

// Invite represents a pending email invitation to a team. The Token is
// a capability secret embedded in the emailed link; knowing it is what
// authorizes acceptance.
type Invite struct {
	ID     string `gorm:"primaryKey;size:16" json:"id"`
	Token  string `gorm:"not null" json:"-"`
	TeamID string `gorm:"not null;index;size:16" json:"teamId"`
	Email  string `gorm:"not null;index" json:"email"`

	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`

	Team Team `json:"-"`
}

// Expired reports whether the invite can no longer be accepted.
func (i *Invite) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
