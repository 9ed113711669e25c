package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/internal/store"
)

// NewCacheStore opens an in-memory notification cache with the schema
// migrated. It is closed when the test completes.
func NewCacheStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err, "opening notification cache")

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing notification cache: %v", err)
		}
	})

	return s
}

// SeedCache stores ns and the unread count for userID as if a poll and a
// list fetch had completed.
func SeedCache(t *testing.T, s *store.SQLiteStore, userID, unread int, ns ...model.Notification) {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, s.SaveNotifications(ctx, userID, ns))
	require.NoError(t, s.SaveUnreadCount(ctx, userID, unread))
}
