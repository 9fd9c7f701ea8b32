package models

import (
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ReferralCodeLength is the number of leading identity-id characters used as a referral code.
const ReferralCodeLength = 8

// User is the profile row keyed by the session provider's identity id.
type User struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	Email         string    `gorm:"index;not null" json:"email"`
	Name          *string   `json:"name,omitempty"`
	WhatsApp      *string   `gorm:"column:whatsapp" json:"whatsapp,omitempty"`
	ReferralCode  string    `gorm:"type:varchar(8);uniqueIndex;not null" json:"referral_code"`
	ReferralCount int64     `gorm:"not null;default:0;check:referral_count >= 0" json:"referral_count"`
	Role          Role      `gorm:"type:varchar(16);not null;default:'user'" json:"role"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (User) TableName() string { return "users" }

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
