package services

import (
	"archive/zip"
	"bytes"
	"context"
	"mime/multipart"
	"strings"
	"sync"
	"testing"

	"financial-matrix/models"
	"financial-matrix/store"
	"financial-matrix/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssets struct {
	keys []string
}

func (f *fakeAssets) UploadFile(_ context.Context, fh *multipart.FileHeader, key string) (string, error) {
	f.keys = append(f.keys, key)
	return "https://cdn.example/" + key, nil
}

// formFile round-trips content through a multipart form so the header can be opened.
func formFile(t *testing.T, field, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File[field][0]
}

func zipOf(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte("payload"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newCatalogFixture(t *testing.T, assets AssetStorage) (*CatalogService, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewCatalogService(st, st, st, assets), st
}

func seedBot(t *testing.T, svc *CatalogService, title string, referral bool) *models.Bot {
	t.Helper()
	bot, err := svc.CreateBot(context.Background(), BotInput{
		Title:            title,
		Description:      title + " description",
		Type:             "trend following",
		ReferralRequired: referral,
		FileURL:          "https://files.example/" + title + ".zip",
	}, BotFiles{})
	require.NoError(t, err)
	return bot
}

func TestCatalog_ViewsPartitionBots(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture(t, nil)
	seedBot(t, svc, "Scalper", false)
	seedBot(t, svc, "Grid", true)
	seedBot(t, svc, "Momentum", false)

	free, err := svc.FreeBots(ctx)
	require.NoError(t, err)
	locked, err := svc.UnlockableBots(ctx)
	require.NoError(t, err)

	require.Len(t, free, 2)
	require.Len(t, locked, 1)

	for _, b := range free {
		assert.False(t, b.ReferralRequired)
		assert.True(t, b.DownloadEnabled)
		assert.Equal(t, ActionDownload, b.Action)
		assert.NotEmpty(t, b.FileURL)
		assert.Equal(t, "Trend Following", b.TypeLabel)
	}

	assert.Equal(t, "Grid", locked[0].Title)
	assert.False(t, locked[0].DownloadEnabled)
	assert.Equal(t, ActionReferToUnlock, locked[0].Action)
	assert.Empty(t, locked[0].FileURL)
}

func TestCatalog_ConcurrentViews(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture(t, nil)
	seedBot(t, svc, "Scalper", false)
	seedBot(t, svc, "Grid", true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				free, err := svc.FreeBots(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, "Trend Following", free[0].TypeLabel)
				locked, err := svc.UnlockableBots(ctx)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, "Trend Following", locked[0].TypeLabel)
			}
		}()
	}
	wg.Wait()
}

func TestCatalog_CreateBotValidation(t *testing.T) {
	svc, _ := newCatalogFixture(t, nil)

	_, err := svc.CreateBot(context.Background(), BotInput{Type: "scalping"}, BotFiles{})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "is required", verr.Fields["title"])
	assert.Equal(t, "is required", verr.Fields["description"])
	assert.NotContains(t, verr.Fields, "type")

	_, err = svc.CreateBot(context.Background(), BotInput{Title: "t", Description: "d", Type: "x"}, BotFiles{})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "file_url")
}

func TestCatalog_CreateBotUploadsAssets(t *testing.T) {
	assets := &fakeAssets{}
	svc, _ := newCatalogFixture(t, assets)

	bot, err := svc.CreateBot(context.Background(), BotInput{
		Title:       "Mean Reversion Pro",
		Description: "d",
		Type:        "mean reversion",
	}, BotFiles{
		BotFile:       formFile(t, "bot_file", "release.ZIP", zipOf(t, "bot/main.mq5", "README.txt")),
		BacktestImage: formFile(t, "backtest_image", "chart", []byte("not really a png")),
	})
	require.NoError(t, err)
	require.Len(t, assets.keys, 2)

	assert.True(t, strings.HasPrefix(assets.keys[0], "bots/mean-reversion-pro-"), assets.keys[0])
	assert.True(t, strings.HasSuffix(assets.keys[0], ".zip"))
	assert.True(t, strings.HasPrefix(assets.keys[1], "backtests/mean-reversion-pro-"), assets.keys[1])
	assert.True(t, strings.HasSuffix(assets.keys[1], ".png"))

	assert.Equal(t, "https://cdn.example/"+assets.keys[0], bot.FileURL)
	require.NotNil(t, bot.BacktestImageURL)
	assert.Equal(t, "mean-reversion-pro", bot.Slug)
}

func TestCatalog_RejectsBadArchives(t *testing.T) {
	assets := &fakeAssets{}
	svc, _ := newCatalogFixture(t, assets)
	in := BotInput{Title: "t", Description: "d", Type: "x"}

	for name, content := range map[string][]byte{
		"corrupt":  []byte("definitely not a zip"),
		"zip slip": zipOf(t, "../../etc/passwd"),
		"empty":    zipOf(t),
	} {
		_, err := svc.CreateBot(context.Background(), in, BotFiles{
			BotFile: formFile(t, "bot_file", "bot.zip", content),
		})
		var verr *utils.ValidationError
		require.ErrorAs(t, err, &verr, name)
		assert.Contains(t, verr.Fields, "bot_file", name)
	}
	assert.Empty(t, assets.keys)
}

func TestCatalog_UploadsDisabledWithoutStorage(t *testing.T) {
	svc, _ := newCatalogFixture(t, nil)

	_, err := svc.CreateBot(context.Background(), BotInput{Title: "t", Description: "d", Type: "x"}, BotFiles{
		BotFile: &multipart.FileHeader{Filename: "bot.zip"},
	})
	assert.ErrorIs(t, err, ErrUploadsDisabled)
}

func TestCatalog_UpdateBot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture(t, nil)
	bot := seedBot(t, svc, "Breakout", false)

	title := "Breakout v2"
	locked := true
	updated, err := svc.UpdateBot(ctx, bot.ID, BotUpdateInput{Title: &title, ReferralRequired: &locked}, BotFiles{})
	require.NoError(t, err)
	assert.Equal(t, "Breakout v2", updated.Title)
	assert.True(t, updated.ReferralRequired)
	assert.Equal(t, bot.Description, updated.Description)

	// reload reflects the edit and the move to the unlockable view
	free, err := svc.FreeBots(ctx)
	require.NoError(t, err)
	assert.Empty(t, free)
	lockedViews, err := svc.UnlockableBots(ctx)
	require.NoError(t, err)
	require.Len(t, lockedViews, 1)
	assert.Equal(t, "Breakout v2", lockedViews[0].Title)

	empty := ""
	_, err = svc.UpdateBot(ctx, bot.ID, BotUpdateInput{Title: &empty}, BotFiles{})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "title")

	_, err = svc.UpdateBot(ctx, "missing", BotUpdateInput{Title: &title}, BotFiles{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCatalog_DeleteBot(t *testing.T) {
	ctx := context.Background()
	svc, _ := newCatalogFixture(t, nil)
	bot := seedBot(t, svc, "Doomed", false)

	require.NoError(t, svc.DeleteBot(ctx, bot.ID))
	bots, err := svc.ListBots(ctx)
	require.NoError(t, err)
	assert.Empty(t, bots)

	assert.ErrorIs(t, svc.DeleteBot(ctx, bot.ID), store.ErrNotFound)
}

func TestCatalog_RecordDownload(t *testing.T) {
	ctx := context.Background()
	svc, st := newCatalogFixture(t, nil)
	free := seedBot(t, svc, "Free", false)
	gated := seedBot(t, svc, "Gated", true)

	d, err := svc.RecordDownload(ctx, "user-1", free.ID)
	require.NoError(t, err)
	assert.Equal(t, free.FileURL, d.Bot.FileURL)

	_, err = svc.RecordDownload(ctx, "user-1", gated.ID)
	assert.ErrorIs(t, err, ErrBotLocked)

	_, err = svc.RecordDownload(ctx, "user-1", "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	downloads, err := st.ListDownloadsByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, free.ID, downloads[0].BotID)
}
