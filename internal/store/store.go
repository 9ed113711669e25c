// Package store keeps the last known good notification state on disk so
// the client can show something while the backend is unreachable.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/agri-advisor/internal/model"
)

// ErrNotCached is returned when nothing has been cached for a user yet.
var ErrNotCached = errors.New("nothing cached")

// UnreadCount is a cached unread counter and when it was observed.
type UnreadCount struct {
	Count     int       `db:"count"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Store defines the persistence interface for cached notification data.
// Everything is scoped by the backend user ID so accounts sharing a
// machine never see each other's data.
type Store interface {
	// SaveNotifications replaces the cached list for userID.
	SaveNotifications(ctx context.Context, userID int, ns []model.Notification) error
	// GetNotifications returns the cached list, newest first.
	GetNotifications(ctx context.Context, userID int) ([]model.Notification, error)

	SaveUnreadCount(ctx context.Context, userID, count int) error
	GetUnreadCount(ctx context.Context, userID int) (UnreadCount, error)

	// Purge drops everything cached for userID.
	Purge(ctx context.Context, userID int) error

	Close() error
}
