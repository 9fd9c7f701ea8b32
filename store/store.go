// Package store is the record store behind the storefront: profiles, bots,
// downloads and, for the self-hosted session provider, identities and sessions.
package store

import (
	"context"
	"errors"
	"time"

	"financial-matrix/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// BotFilter narrows ListBots. A nil ReferralRequired lists every bot.
type BotFilter struct {
	ReferralRequired *bool
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	// IncrementReferralCount adds delta to referral_count in a single
	// store-side operation; concurrent callers never lose an update.
	IncrementReferralCount(ctx context.Context, userID string, delta int64) error
	CreateReferral(ctx context.Context, r *models.Referral) error
}

type BotStore interface {
	ListBots(ctx context.Context, filter BotFilter) ([]models.Bot, error)
	GetBot(ctx context.Context, id string) (*models.Bot, error)
	CreateBot(ctx context.Context, b *models.Bot) error
	UpdateBot(ctx context.Context, id string, patch models.BotPatch) (*models.Bot, error)
	DeleteBot(ctx context.Context, id string) error
}

type DownloadStore interface {
	CreateDownload(ctx context.Context, d *models.Download) error
	// ListDownloadsByUser returns the user's downloads newest first with Bot populated.
	ListDownloadsByUser(ctx context.Context, userID string) ([]models.Download, error)
}

type IdentityStore interface {
	CreateIdentity(ctx context.Context, i *models.Identity) error
	GetIdentity(ctx context.Context, id string) (*models.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error)

	CreateSession(ctx context.Context, s *models.AuthSession) error
	GetAuthSession(ctx context.Context, id string) (*models.AuthSession, error)
	GetSessionByRefreshToken(ctx context.Context, token string) (*models.AuthSession, error)
	RevokeSession(ctx context.Context, id string, at time.Time) error
	RevokeIdentitySessions(ctx context.Context, identityID string, at time.Time) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// RecordStore is everything the service persists.
type RecordStore interface {
	UserStore
	BotStore
	DownloadStore
	IdentityStore
}

func BoolPtr(v bool) *bool { return &v }
