package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financial-matrix/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type GormStore struct {
	DB *gorm.DB
}

// OpenPostgres connects and migrates every table the service owns.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) Migrate() error {
	if err := s.DB.AutoMigrate(
		&models.User{},
		&models.Bot{},
		&models.Download{},
		&models.Referral{},
		&models.Identity{},
		&models.AuthSession{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

// ===== Users =====

func (s *GormStore) CreateUser(ctx context.Context, u *models.User) error {
	return translate(s.DB.WithContext(ctx).Create(u).Error)
}

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("referral_code = ?", code).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (s *GormStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, translate(err)
	}
	return users, nil
}

func (s *GormStore) IncrementReferralCount(ctx context.Context, userID string, delta int64) error {
	res := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("referral_count", gorm.Expr("referral_count + ?", delta))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateReferral(ctx context.Context, r *models.Referral) error {
	return translate(s.DB.WithContext(ctx).Create(r).Error)
}

// ===== Bots =====

func (s *GormStore) ListBots(ctx context.Context, filter BotFilter) ([]models.Bot, error) {
	var bots []models.Bot
	q := s.DB.WithContext(ctx).Order("created_at ASC")
	if filter.ReferralRequired != nil {
		q = q.Where("referral_required = ?", *filter.ReferralRequired)
	}
	if err := q.Find(&bots).Error; err != nil {
		return nil, translate(err)
	}
	return bots, nil
}

func (s *GormStore) GetBot(ctx context.Context, id string) (*models.Bot, error) {
	var b models.Bot
	if err := s.DB.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &b, nil
}

func (s *GormStore) CreateBot(ctx context.Context, b *models.Bot) error {
	return translate(s.DB.WithContext(ctx).Create(b).Error)
}

func (s *GormStore) UpdateBot(ctx context.Context, id string, patch models.BotPatch) (*models.Bot, error) {
	var bot models.Bot
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&bot, "id = ?", id).Error; err != nil {
			return err
		}
		patch.Apply(&bot)
		return tx.Save(&bot).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return &bot, nil
}

// DeleteBot hard-deletes the bot together with its download rows.
func (s *GormStore) DeleteBot(ctx context.Context, id string) error {
	return translate(s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bot_id = ?", id).Delete(&models.Download{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Bot{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	}))
}

// ===== Downloads =====

func (s *GormStore) CreateDownload(ctx context.Context, d *models.Download) error {
	return translate(s.DB.WithContext(ctx).Omit("Bot").Create(d).Error)
}

func (s *GormStore) ListDownloadsByUser(ctx context.Context, userID string) ([]models.Download, error) {
	var downloads []models.Download
	if err := s.DB.WithContext(ctx).
		Preload("Bot").
		Where("user_id = ?", userID).
		Order("downloaded_at DESC").
		Find(&downloads).Error; err != nil {
		return nil, translate(err)
	}
	return downloads, nil
}

// ===== Identities & sessions =====

func (s *GormStore) CreateIdentity(ctx context.Context, i *models.Identity) error {
	return translate(s.DB.WithContext(ctx).Create(i).Error)
}

func (s *GormStore) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	var i models.Identity
	if err := s.DB.WithContext(ctx).First(&i, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &i, nil
}

func (s *GormStore) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	var i models.Identity
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&i).Error; err != nil {
		return nil, translate(err)
	}
	return &i, nil
}

func (s *GormStore) CreateSession(ctx context.Context, sess *models.AuthSession) error {
	return translate(s.DB.WithContext(ctx).Create(sess).Error)
}

func (s *GormStore) GetAuthSession(ctx context.Context, id string) (*models.AuthSession, error) {
	var sess models.AuthSession
	if err := s.DB.WithContext(ctx).First(&sess, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *GormStore) GetSessionByRefreshToken(ctx context.Context, token string) (*models.AuthSession, error) {
	var sess models.AuthSession
	if err := s.DB.WithContext(ctx).Where("refresh_token = ?", token).First(&sess).Error; err != nil {
		return nil, translate(err)
	}
	return &sess, nil
}

func (s *GormStore) RevokeSession(ctx context.Context, id string, at time.Time) error {
	return translate(s.DB.WithContext(ctx).
		Model(&models.AuthSession{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", at).Error)
}

func (s *GormStore) RevokeIdentitySessions(ctx context.Context, identityID string, at time.Time) error {
	return translate(s.DB.WithContext(ctx).
		Model(&models.AuthSession{}).
		Where("identity_id = ? AND revoked_at IS NULL", identityID).
		Update("revoked_at", at).Error)
}

func (s *GormStore) DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error) {
	res := s.DB.WithContext(ctx).
		Where("expires_at < ? OR revoked_at IS NOT NULL", before).
		Delete(&models.AuthSession{})
	return res.RowsAffected, translate(res.Error)
}
