package models

import (
	"time"
)

// Roles assignable to a user account.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered customer account. The OTP and reset-token
// fields hold at most one active secret each and are cleared on consumption.
type User struct {
	BaseModel
	Name         string `json:"name"`
	Email        string `gorm:"uniqueIndex" json:"email"`
	Phone        string `gorm:"uniqueIndex" json:"phone"`
	PasswordHash string `json:"-"`
	IsVerified   bool   `json:"is_verified"`
	IsPremium    bool   `json:"is_premium"`
	Role         string `gorm:"default:user" json:"role"`

	OTPCode      string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`

	// Only the sha256 digest of the reset token is ever stored.
	ResetTokenHash string     `gorm:"index" json:"-"`
	ResetExpiresAt *time.Time `json:"-"`

	Orders []Order `json:"orders,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
