// models/bot.go
package models

import (
	"time"
)

// Bot is a downloadable trading bot. ReferralRequired splits the catalog
// into the free and unlockable views.
type Bot struct {
	ID               string  `json:"id" gorm:"primaryKey;type:uuid"`
	Title            string  `json:"title" gorm:"not null"`
	Description      string  `json:"description" gorm:"type:text;not null"`
	Type             string  `json:"type" gorm:"not null"`
	ReferralRequired bool    `json:"referral_required" gorm:"not null;default:false;index"`
	FileURL          string  `json:"file_url" gorm:"type:text;not null"`
	BacktestImageURL *string `json:"backtest_image_url,omitempty" gorm:"type:text"`

	// 🔗 Used for asset keys, e.g. "bots/<slug>-<uuid>.zip"
	Slug string `json:"slug" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BotPatch carries admin edits. Nil fields are left untouched.
type BotPatch struct {
	Title            *string
	Description      *string
	Type             *string
	ReferralRequired *bool
	FileURL          *string
	BacktestImageURL *string
}

// Apply copies the set fields of p onto b.
func (p BotPatch) Apply(b *Bot) {
	if p.Title != nil {
		b.Title = *p.Title
	}
	if p.Description != nil {
		b.Description = *p.Description
	}
	if p.Type != nil {
		b.Type = *p.Type
	}
	if p.ReferralRequired != nil {
		b.ReferralRequired = *p.ReferralRequired
	}
	if p.FileURL != nil {
		b.FileURL = *p.FileURL
	}
	if p.BacktestImageURL != nil {
		if *p.BacktestImageURL == "" {
			b.BacktestImageURL = nil
		} else {
			v := *p.BacktestImageURL
			b.BacktestImageURL = &v
		}
	}
}
