package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"financial-matrix/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSQLiteStore opens a migrated GormStore on a throwaway SQLite file.
func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "records.db") + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s := NewGormStore(db)
	require.NoError(t, s.Migrate())
	return s
}

func TestGormStore_IncrementIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "referrer-1", Email: "a@test.com", ReferralCode: "referrer"}))

	// two signups crediting the same referrer at once
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementReferralCount(ctx, "referrer-1", 1))
		}()
	}
	wg.Wait()

	u, err := s.GetUser(ctx, "referrer-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, u.ReferralCount)

	const workers = 25
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.IncrementReferralCount(ctx, "referrer-1", 1))
		}()
	}
	wg.Wait()

	u, err = s.GetUser(ctx, "referrer-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2+workers, u.ReferralCount)
}

func TestGormStore_IncrementUnknownUser(t *testing.T) {
	err := newSQLiteStore(t).IncrementReferralCount(context.Background(), "ghost", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_ReferralCodeUnique(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "abcdefgh-1", Email: "a@test.com", ReferralCode: "abcdefgh"}))

	err := s.CreateUser(ctx, &models.User{ID: "abcdefgh-2", Email: "b@test.com", ReferralCode: "abcdefgh"})
	assert.ErrorIs(t, err, ErrDuplicate)

	got, err := s.GetUserByReferralCode(ctx, "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh-1", got.ID)
	assert.Equal(t, models.RoleUser, got.Role)

	_, err = s.GetUserByReferralCode(ctx, "zzzzzzzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_BotFilterPartitions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.CreateBot(ctx, &models.Bot{ID: "b1", Title: "Grid", ReferralRequired: false}))
	require.NoError(t, s.CreateBot(ctx, &models.Bot{ID: "b2", Title: "Scalper", ReferralRequired: true}))
	require.NoError(t, s.CreateBot(ctx, &models.Bot{ID: "b3", Title: "Trend", ReferralRequired: false}))

	free, err := s.ListBots(ctx, BotFilter{ReferralRequired: BoolPtr(false)})
	require.NoError(t, err)
	locked, err := s.ListBots(ctx, BotFilter{ReferralRequired: BoolPtr(true)})
	require.NoError(t, err)
	all, err := s.ListBots(ctx, BotFilter{})
	require.NoError(t, err)

	assert.Len(t, free, 2)
	require.Len(t, locked, 1)
	assert.Equal(t, "b2", locked[0].ID)
	assert.Len(t, all, 3)
}

func TestGormStore_UpdateAndDeleteBot(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	img := "https://cdn.test/bt.png"
	require.NoError(t, s.CreateBot(ctx, &models.Bot{ID: "b1", Title: "Grid", Description: "d", BacktestImageURL: &img}))
	require.NoError(t, s.CreateDownload(ctx, &models.Download{ID: "d1", UserID: "u1", BotID: "b1", DownloadedAt: time.Now()}))

	title := "Grid v2"
	empty := ""
	updated, err := s.UpdateBot(ctx, "b1", models.BotPatch{Title: &title, BacktestImageURL: &empty})
	require.NoError(t, err)
	assert.Equal(t, "Grid v2", updated.Title)
	assert.Nil(t, updated.BacktestImageURL)

	reloaded, err := s.GetBot(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Grid v2", reloaded.Title)
	assert.Equal(t, "d", reloaded.Description)
	assert.Nil(t, reloaded.BacktestImageURL)

	_, err = s.UpdateBot(ctx, "missing", models.BotPatch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeleteBot(ctx, "b1"))
	_, err = s.GetBot(ctx, "b1")
	assert.ErrorIs(t, err, ErrNotFound)
	downloads, err := s.ListDownloadsByUser(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, downloads, "downloads go with the bot")

	assert.ErrorIs(t, s.DeleteBot(ctx, "b1"), ErrNotFound)
}

func TestGormStore_DownloadsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	require.NoError(t, s.CreateBot(ctx, &models.Bot{ID: "b1", Title: "Grid"}))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateDownload(ctx, &models.Download{ID: "old", UserID: "u1", BotID: "b1", DownloadedAt: base}))
	require.NoError(t, s.CreateDownload(ctx, &models.Download{ID: "new", UserID: "u1", BotID: "b1", DownloadedAt: base.Add(time.Hour)}))
	require.NoError(t, s.CreateDownload(ctx, &models.Download{ID: "other", UserID: "u2", BotID: "b1", DownloadedAt: base}))

	downloads, err := s.ListDownloadsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, downloads, 2)
	assert.Equal(t, "new", downloads[0].ID)
	assert.Equal(t, "old", downloads[1].ID)
	require.NotNil(t, downloads[0].Bot)
	assert.Equal(t, "Grid", downloads[0].Bot.Title)
}

func TestGormStore_Sessions(t *testing.T) {
	ctx := context.Background()
	s := newSQLiteStore(t)
	now := time.Now()
	require.NoError(t, s.CreateIdentity(ctx, &models.Identity{ID: "i1", Email: "i1@test.com", PasswordHash: "x"}))
	assert.ErrorIs(t, s.CreateIdentity(ctx, &models.Identity{ID: "i2", Email: "i1@test.com", PasswordHash: "x"}), ErrDuplicate)

	ident, err := s.GetIdentityByEmail(ctx, "i1@test.com")
	require.NoError(t, err)
	assert.Equal(t, "i1", ident.ID)

	require.NoError(t, s.CreateSession(ctx, &models.AuthSession{ID: "s1", IdentityID: "i1", RefreshToken: "r1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, &models.AuthSession{ID: "s2", IdentityID: "i1", RefreshToken: "r2", ExpiresAt: now.Add(-time.Hour)}))
	require.NoError(t, s.CreateSession(ctx, &models.AuthSession{ID: "s3", IdentityID: "i1", RefreshToken: "r3", ExpiresAt: now.Add(time.Hour)}))

	sess, err := s.GetSessionByRefreshToken(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, sess.Active(now))

	n, err := s.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, s.RevokeIdentitySessions(ctx, "i1", now))
	for _, id := range []string{"s1", "s3"} {
		row, err := s.GetAuthSession(ctx, id)
		require.NoError(t, err)
		assert.False(t, row.Active(now), id)
	}
}
