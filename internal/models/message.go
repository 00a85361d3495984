package models

import "time"

// Message is a direct message between two users. An unread message addressed
// to an offline user is the queued representation; there is no other queue.
type Message struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	Text        string     `gorm:"type:text;not null" json:"text"`
	SenderID    string     `gorm:"size:64;not null;index:idx_messages_sender_recipient" json:"senderId"`
	SenderName  string     `gorm:"size:255;not null" json:"senderName"`
	SenderRole  string     `gorm:"size:20;not null" json:"senderRole"`
	RecipientID string     `gorm:"size:64;not null;index:idx_messages_sender_recipient;index:idx_messages_recipient_read" json:"recipientId"`
	Timestamp   time.Time  `gorm:"not null;index" json:"timestamp"`
	Read        bool       `gorm:"column:is_read;not null;default:false;index:idx_messages_recipient_read" json:"read"`
	ReadAt      *time.Time `json:"readAt"` // set iff Read
	CreatedAt   time.Time  `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Sender *User `gorm:"foreignKey:SenderID;references:UserID" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

// Denormalize copies the sender's current name and role onto the message when
// the sender row was loaded.
func (m *Message) Denormalize() {
	if m.Sender == nil {
		return
	}
	if m.Sender.UserName != "" {
		m.SenderName = m.Sender.UserName
	}
	if m.Sender.UserRole != "" {
		m.SenderRole = m.Sender.UserRole
	}
}
