package model

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. The password hash is never serialized.
type User struct {
	gorm.Model
	Username     string     `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`
	Role         string     `gorm:"type:varchar(50);default:'user';not null" json:"role"`
	Tier         string     `gorm:"type:varchar(50);default:'free';not null" json:"tier"`
	Active       bool       `gorm:"default:true;not null" json:"active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// IsAdmin reports whether the user carries the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == "admin"
}
