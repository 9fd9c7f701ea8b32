package models

import "time"

// Download links a user to a bot they fetched.
type Download struct {
	ID           string    `json:"id" gorm:"primaryKey;type:uuid"`
	UserID       string    `json:"user_id" gorm:"index;not null"`
	BotID        string    `json:"bot_id" gorm:"index;not null"`
	DownloadedAt time.Time `json:"downloaded_at" gorm:"not null"`

	Bot *Bot `json:"bots,omitempty" gorm:"foreignKey:BotID"`
}
