package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/internal/store"
	"github.com/nhle/agri-advisor/tests/testutil"
)

func TestSQLiteStore_NotificationsRoundTrip(t *testing.T) {
	s := testutil.NewCacheStore(t)
	ctx := context.Background()

	older := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(2 * time.Hour)
	readAt := newer.Add(time.Minute)

	err := s.SaveNotifications(ctx, 1, []model.Notification{
		{ID: 10, Type: "price_alert", Title: "Maize up", Message: "KES 42", Priority: model.PriorityHigh,
			CreatedAt: older, ExtraData: map[string]any{"market": "Nakuru"}},
		{ID: 11, Type: "weather", Title: "Rain", IsRead: true, Priority: model.PriorityNormal,
			CreatedAt: newer, ReadAt: &readAt},
	})
	require.NoError(t, err)

	got, err := s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 11, got[0].ID, "newest first")
	assert.True(t, got[0].IsRead)
	require.NotNil(t, got[0].ReadAt)
	assert.True(t, got[0].ReadAt.Equal(readAt))

	assert.Equal(t, "Maize up", got[1].Title)
	assert.Equal(t, model.PriorityHigh, got[1].Priority)
	assert.Equal(t, "Nakuru", got[1].ExtraData["market"])
	assert.True(t, got[1].CreatedAt.Equal(older))
	assert.Nil(t, got[1].ReadAt)
}

func TestSQLiteStore_SaveReplacesList(t *testing.T) {
	s := testutil.NewCacheStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveNotifications(ctx, 1, []model.Notification{
		{ID: 1, Title: "a", CreatedAt: now},
		{ID: 2, Title: "b", CreatedAt: now},
	}))
	require.NoError(t, s.SaveNotifications(ctx, 1, []model.Notification{
		{ID: 3, Title: "c", CreatedAt: now},
	}))

	got, err := s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ID)

	require.NoError(t, s.SaveNotifications(ctx, 1, nil))
	got, err = s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLiteStore_ScopedByUser(t *testing.T) {
	s := testutil.NewCacheStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.SaveNotifications(ctx, 1, []model.Notification{{ID: 1, Title: "mine", CreatedAt: now}}))
	testutil.SeedCache(t, s, 2, 4, model.Notification{ID: 1, Title: "theirs", CreatedAt: now})

	got, err := s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "mine", got[0].Title)

	_, err = s.GetUnreadCount(ctx, 1)
	assert.ErrorIs(t, err, store.ErrNotCached)

	require.NoError(t, s.Purge(ctx, 2))
	got, err = s.GetNotifications(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, got)
	_, err = s.GetUnreadCount(ctx, 2)
	assert.ErrorIs(t, err, store.ErrNotCached)

	got, err = s.GetNotifications(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSQLiteStore_UnreadCount(t *testing.T) {
	s := testutil.NewCacheStore(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	require.NoError(t, s.SaveUnreadCount(ctx, 7, 3))
	require.NoError(t, s.SaveUnreadCount(ctx, 7, 5))

	uc, err := s.GetUnreadCount(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 5, uc.Count)
	assert.True(t, uc.UpdatedAt.After(before))

	require.NoError(t, s.SaveUnreadCount(ctx, 7, -2))
	uc, err = s.GetUnreadCount(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, uc.Count)
}

func TestSQLiteStore_ReopenKeepsDataAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveUnreadCount(ctx, 1, 9))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	uc, err := s.GetUnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 9, uc.Count)
}
