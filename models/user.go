package models

import "gorm.io/gorm"

// User represents an agent account in the system
type User struct {
	gorm.Model

	Name         string `gorm:"not null" json:"name"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Last workspace the dashboard had open, restored on sign-in
	LastOpenedID *string `json:"lastOpenedId,omitempty"`

	// Relations
	Memberships []TeamMember `gorm:"foreignKey:UserID" json:"-"`
	AuthTokens  []AuthToken  `gorm:"foreignKey:UserID" json:"-"`
}
