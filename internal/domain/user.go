package domain

import "time"

type User struct {
	ID                UserID     `gorm:"type:uuid;primaryKey" json:"id"`
	Handle            string     `gorm:"type:citext;uniqueIndex:ux_users_handle" json:"handle"`
	PasswordHash      []byte     `gorm:"type:bytea" json:"-"`
	PasswordSalt      []byte     `gorm:"type:bytea" json:"-"`
	PasswordParams    []byte     `gorm:"type:bytea" json:"-"`
	PreferredLanguage string     `gorm:"type:text;not null;default:'English'" json:"preferredLanguage"`
	IsOnline          bool       `gorm:"not null;default:false" json:"isOnline"`
	LastSeen          *time.Time `json:"lastSeen,omitempty"`
	CreatedAt         time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt         time.Time  `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// HasPassword reports whether the handle was claimed with a credential.
// Handles registered without one stay open to whoever presents the handle.
func (u *User) HasPassword() bool { return len(u.PasswordHash) > 0 }
