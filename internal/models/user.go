package models

import "time"

type User struct {
	UserID    string     `gorm:"primaryKey;size:64" json:"userId"`
	UserName  string     `gorm:"size:255;not null" json:"userName"`
	UserRole  string     `gorm:"size:20;not null;index" json:"userRole"` // doctor | nurse | pharmacy | patient | admin
	IsOnline  bool       `gorm:"not null;default:false;index" json:"isOnline"`
	LastSeen  *time.Time `gorm:"index" json:"lastSeen"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	Sessions []UserSession `gorm:"foreignKey:UserID;references:UserID" json:"-"`
}

func (User) TableName() string {
	return "users"
}
