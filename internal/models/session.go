package models

import "time"

// UserSession is one connection lifetime of a user.
type UserSession struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	UserID          string     `gorm:"size:64;not null;index" json:"userId"`
	ConnectionID    string     `gorm:"size:64;not null;index" json:"connectionId"`
	IPAddress       string     `gorm:"size:64" json:"ipAddress,omitempty"`
	UserAgent       string     `gorm:"type:text" json:"userAgent,omitempty"`
	IsActive        bool       `gorm:"not null;default:true;index" json:"isActive"`
	ConnectedAt     time.Time  `gorm:"not null;index" json:"connectedAt"`
	DisconnectedAt  *time.Time `json:"disconnectedAt"`
	SessionDuration *int       `json:"sessionDuration"` // seconds
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

// Close marks the session ended at t and records its duration.
func (s *UserSession) Close(t time.Time) {
	s.IsActive = false
	s.DisconnectedAt = &t
	d := int(t.Sub(s.ConnectedAt).Seconds())
	if d < 0 {
		d = 0
	}
	s.SessionDuration = &d
}
