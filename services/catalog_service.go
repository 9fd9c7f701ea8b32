// services/catalog_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"financial-matrix/models"
	"financial-matrix/store"
	"financial-matrix/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	ActionDownload      = "Download Bot"
	ActionReferToUnlock = "Refer to Unlock"
)

var (
	ErrBotLocked       = errors.New("this bot is unlocked through referrals and cannot be downloaded yet")
	ErrUploadsDisabled = errors.New("file uploads are not configured")
	ErrFileURLRequired = errors.New("file_url is required")
)

// AssetStorage stores uploaded bot assets and returns their public URL.
type AssetStorage interface {
	UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

// BotView is a catalog entry as a viewer sees it.
type BotView struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Type             string  `json:"type"`
	TypeLabel        string  `json:"type_label"`
	ReferralRequired bool    `json:"referral_required"`
	FileURL          string  `json:"file_url,omitempty"`
	BacktestImageURL *string `json:"backtest_image_url,omitempty"`
	DownloadEnabled  bool    `json:"download_enabled"`
	Action           string  `json:"action"`
}

// BotInput is the admin create form. FileURL may be empty when a bot file is uploaded.
type BotInput struct {
	Title            string `json:"title" form:"title" validate:"required"`
	Description      string `json:"description" form:"description" validate:"required"`
	Type             string `json:"type" form:"type" validate:"required"`
	ReferralRequired bool   `json:"referral_required" form:"referral_required"`
	FileURL          string `json:"file_url" form:"file_url"`
	BacktestImageURL string `json:"backtest_image_url" form:"backtest_image_url"`
}

// BotUpdateInput is the admin edit form; absent fields are left untouched.
type BotUpdateInput struct {
	Title            *string `json:"title" validate:"omitnil,min=1"`
	Description      *string `json:"description" validate:"omitnil,min=1"`
	Type             *string `json:"type" validate:"omitnil,min=1"`
	ReferralRequired *bool   `json:"referral_required"`
	FileURL          *string `json:"file_url" validate:"omitnil,min=1"`
	BacktestImageURL *string `json:"backtest_image_url"`
}

// BotFiles are optional multipart uploads accompanying a create or update.
type BotFiles struct {
	BotFile       *multipart.FileHeader
	BacktestImage *multipart.FileHeader
}

type CatalogService struct {
	Bots      store.BotStore
	Downloads store.DownloadStore
	Users     store.UserStore
	// Assets is nil when R2 is not configured.
	Assets   AssetStorage
	validate *utils.Validator
	now      func() time.Time
}

func NewCatalogService(bots store.BotStore, downloads store.DownloadStore, users store.UserStore, assets AssetStorage) *CatalogService {
	return &CatalogService{
		Bots:      bots,
		Downloads: downloads,
		Users:     users,
		Assets:    assets,
		validate:  utils.NewValidator(),
		now:       time.Now,
	}
}

// FreeBots lists bots that need no referral.
func (s *CatalogService) FreeBots(ctx context.Context) ([]BotView, error) {
	bots, err := s.Bots.ListBots(ctx, store.BotFilter{ReferralRequired: store.BoolPtr(false)})
	if err != nil {
		return nil, fmt.Errorf("fetch free bots: %w", err)
	}
	out := make([]BotView, 0, len(bots))
	for i := range bots {
		out = append(out, s.view(&bots[i]))
	}
	return out, nil
}

// UnlockableBots lists referral-gated bots. Download stays disabled for every
// viewer; no referral_count threshold unlocks them.
func (s *CatalogService) UnlockableBots(ctx context.Context) ([]BotView, error) {
	bots, err := s.Bots.ListBots(ctx, store.BotFilter{ReferralRequired: store.BoolPtr(true)})
	if err != nil {
		return nil, fmt.Errorf("fetch unlockable bots: %w", err)
	}
	out := make([]BotView, 0, len(bots))
	for i := range bots {
		out = append(out, s.view(&bots[i]))
	}
	return out, nil
}

func (s *CatalogService) view(b *models.Bot) BotView {
	v := BotView{
		ID:               b.ID,
		Title:            b.Title,
		Description:      b.Description,
		Type:             b.Type,
		TypeLabel:        typeLabel(b.Type),
		ReferralRequired: b.ReferralRequired,
		BacktestImageURL: b.BacktestImageURL,
	}
	if b.ReferralRequired {
		v.Action = ActionReferToUnlock
		return v
	}
	v.FileURL = b.FileURL
	v.DownloadEnabled = true
	v.Action = ActionDownload
	return v
}

// typeLabel title-cases a bot type. A Caser keeps state, so each call gets its own.
func typeLabel(t string) string {
	return cases.Title(language.English).String(strings.TrimSpace(t))
}

// ===== Admin =====

func (s *CatalogService) ListBots(ctx context.Context) ([]models.Bot, error) {
	bots, err := s.Bots.ListBots(ctx, store.BotFilter{})
	if err != nil {
		return nil, fmt.Errorf("fetch bots: %w", err)
	}
	return bots, nil
}

func (s *CatalogService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.Users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	return users, nil
}

func (s *CatalogService) CreateBot(ctx context.Context, in BotInput, files BotFiles) (*models.Bot, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	bot := &models.Bot{
		ID:               uuid.NewString(),
		Title:            in.Title,
		Description:      in.Description,
		Type:             in.Type,
		ReferralRequired: in.ReferralRequired,
		FileURL:          in.FileURL,
		Slug:             slug.Make(in.Title),
	}
	if in.BacktestImageURL != "" {
		v := in.BacktestImageURL
		bot.BacktestImageURL = &v
	}

	if err := s.uploadAssets(ctx, bot, files); err != nil {
		return nil, err
	}
	if bot.FileURL == "" {
		return nil, &utils.ValidationError{Fields: map[string]string{"file_url": "is required"}}
	}

	if err := s.Bots.CreateBot(ctx, bot); err != nil {
		return nil, fmt.Errorf("error adding bot: %w", err)
	}
	utils.Component("catalog").Info("bot created", "bot_id", bot.ID, "title", bot.Title, "referral_required", bot.ReferralRequired)
	return bot, nil
}

func (s *CatalogService) UpdateBot(ctx context.Context, id string, in BotUpdateInput, files BotFiles) (*models.Bot, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.Bots.GetBot(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := models.BotPatch{
		Title:            in.Title,
		Description:      in.Description,
		Type:             in.Type,
		ReferralRequired: in.ReferralRequired,
		FileURL:          in.FileURL,
		BacktestImageURL: in.BacktestImageURL,
	}

	if files.BotFile != nil || files.BacktestImage != nil {
		staged := *existing
		patch.Apply(&staged)
		if err := s.uploadAssets(ctx, &staged, files); err != nil {
			return nil, err
		}
		if files.BotFile != nil {
			patch.FileURL = &staged.FileURL
		}
		if files.BacktestImage != nil {
			patch.BacktestImageURL = staged.BacktestImageURL
		}
	}

	bot, err := s.Bots.UpdateBot(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("error updating bot: %w", err)
	}
	utils.Component("catalog").Info("bot updated", "bot_id", bot.ID)
	return bot, nil
}

func (s *CatalogService) DeleteBot(ctx context.Context, id string) error {
	if err := s.Bots.DeleteBot(ctx, id); err != nil {
		return err
	}
	utils.Component("catalog").Info("bot deleted", "bot_id", id)
	return nil
}

func (s *CatalogService) uploadAssets(ctx context.Context, bot *models.Bot, files BotFiles) error {
	if files.BotFile == nil && files.BacktestImage == nil {
		return nil
	}
	if s.Assets == nil {
		return ErrUploadsDisabled
	}

	base := bot.Slug
	if base == "" {
		base = slug.Make(bot.Title)
	}

	if files.BotFile != nil {
		if strings.EqualFold(filepath.Ext(files.BotFile.Filename), ".zip") {
			if _, err := utils.ValidateZipArchive(files.BotFile); err != nil {
				return &utils.ValidationError{Fields: map[string]string{"bot_file": "is not a usable zip archive"}}
			}
		}
		key := assetKey("bots", base, files.BotFile.Filename, ".zip")
		url, err := s.Assets.UploadFile(ctx, files.BotFile, key)
		if err != nil {
			return fmt.Errorf("failed to upload bot file: %w", err)
		}
		bot.FileURL = url
	}
	if files.BacktestImage != nil {
		key := assetKey("backtests", base, files.BacktestImage.Filename, ".png")
		url, err := s.Assets.UploadFile(ctx, files.BacktestImage, key)
		if err != nil {
			return fmt.Errorf("failed to upload backtest image: %w", err)
		}
		bot.BacktestImageURL = &url
	}
	return nil
}

// assetKey builds "<prefix>/<slug>-<uuid><ext>", falling back to defaultExt.
func assetKey(prefix, base, filename, defaultExt string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = defaultExt
	}
	if base == "" {
		base = "bot"
	}
	return fmt.Sprintf("%s/%s-%s%s", prefix, base, uuid.NewString(), ext)
}

// ===== Downloads =====

// RecordDownload logs a download of a free bot and returns the stored row with
// Bot populated. Referral-gated bots are refused with ErrBotLocked.
func (s *CatalogService) RecordDownload(ctx context.Context, userID, botID string) (*models.Download, error) {
	bot, err := s.Bots.GetBot(ctx, botID)
	if err != nil {
		return nil, err
	}
	if bot.ReferralRequired {
		return nil, ErrBotLocked
	}

	d := &models.Download{
		ID:           uuid.NewString(),
		UserID:       userID,
		BotID:        bot.ID,
		DownloadedAt: s.now(),
	}
	if err := s.Downloads.CreateDownload(ctx, d); err != nil {
		return nil, fmt.Errorf("record download: %w", err)
	}
	d.Bot = bot
	return d, nil
}
