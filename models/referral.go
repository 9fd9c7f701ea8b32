package models

import "time"

// Referral records which profile's code a new signup used. The referrer's
// User.ReferralCount is the source of truth; this row is an audit trail.
type Referral struct {
	ID               string    `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID       string    `gorm:"index;not null" json:"referrer_id"`
	ReferredID       string    `gorm:"uniqueIndex;not null" json:"referred_id"`
	ReferralCodeUsed string    `gorm:"type:varchar(8);not null" json:"referral_code_used"`
	CreatedAt        time.Time `json:"created_at" gorm:"autoCreateTime"`
}
