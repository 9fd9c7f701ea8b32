package models

import "time"

// Identity is a credential row owned by the self-hosted session provider.
// Deployments using a remote auth server never touch this table.
type Identity struct {
	ID               string     `gorm:"primaryKey;type:uuid" json:"id"`
	Email            string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash     string     `gorm:"not null" json:"-"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// AuthSession is a refresh-token row for the self-hosted session provider.
type AuthSession struct {
	ID           string     `gorm:"primaryKey;type:uuid" json:"id"`
	IdentityID   string     `gorm:"index;not null" json:"identity_id"`
	RefreshToken string     `gorm:"uniqueIndex;not null" json:"-"`
	ExpiresAt    time.Time  `gorm:"index;not null" json:"expires_at"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (AuthSession) TableName() string { return "sessions" }

func (s *AuthSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
