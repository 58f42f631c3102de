package models

import "time"

// Team represents a workspace that visitor sessions are opened against
type Team struct {
	ID          string    `gorm:"primaryKey;size:16" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`

	// Relations
	Members []TeamMember `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

// TeamMember represents team members and their roles
type TeamMember struct {
	ID     uint   `gorm:"primaryKey" json:"-"`
	TeamID string `gorm:"not null;index;size:16" json:"teamId"`
	UserID uint   `gorm:"not null;index" json:"userId"`

	Role      string    `gorm:"default:'member'" json:"role"` // owner, member
	CreatedAt time.Time `json:"createdAt"`

	// Relations
	Team Team `json:"-"`
	User User `json:"-"`
}
