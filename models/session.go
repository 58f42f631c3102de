package models

import "time"

// Session status values
const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// Session represents one visitor conversation against a team.
// Token is the visitor's bearer secret and is never serialized.
type Session struct {
	ID     string `gorm:"primaryKey;size:16" json:"id"`
	Token  string `gorm:"not null;index" json:"-"`
	TeamID string `gorm:"not null;index;size:16" json:"teamId"`

	Status    string     `gorm:"default:'open'" json:"status"` // open, closed
	CreatedAt time.Time  `json:"createdAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`

	// Relations
	Messages []Message `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"messages"`

	// Most recent message, populated on list queries only
	LatestMessage *Message `gorm:"-" json:"latestMessage,omitempty"`
}

// Message represents a single chat message. Immutable after creation
// except for the Read flag.
type Message struct {
	ID        string `gorm:"primaryKey;size:16" json:"id"`
	SessionID string `gorm:"not null;index;size:16" json:"sessionId"`

	// Sender snapshot taken at creation; both nil for visitor messages.
	// Agent messages keep the name even if the account is later deleted.
	SenderID   *uint   `json:"-"`
	SenderName *string `json:"-"`

	Content   string    `gorm:"not null;size:500" json:"content"`
	Read      bool      `gorm:"default:false" json:"read"`
	CreatedAt time.Time `json:"createdAt"`

	Sender *MessageSender `gorm:"-" json:"sender"`
}

// MessageSender is the wire shape of a message author. Nil means the
// visitor sent it.
type MessageSender struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// AttachSender fills the serialized Sender field from the stored
// snapshot columns.
func (m *Message) AttachSender() {
	if m.SenderID != nil {
		name := ""
		if m.SenderName != nil {
			name = *m.SenderName
		}
		m.Sender = &MessageSender{ID: *m.SenderID, Name: name}
	}
}
