package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/agri-advisor/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and
	// serializes writers from the poll goroutine and user actions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SaveNotifications replaces the cached notification list for userID.
func (s *SQLiteStore) SaveNotifications(
	ctx context.Context,
	userID int,
	ns []model.Notification,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM notifications WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("clearing cached notifications: %w", err)
	}

	const query = `
		INSERT INTO notifications (
			user_id, id, type, title, message,
			is_read, priority, created_at, read_at,
			extra_data, fetched_at
		) VALUES (
			?, ?, ?, ?, ?,
			?, ?, ?, ?,
			?, ?
		)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, n := range ns {
		extra := "{}"
		if len(n.ExtraData) > 0 {
			b, err := json.Marshal(n.ExtraData)
			if err != nil {
				return fmt.Errorf("marshaling extra_data for notification %d: %w", n.ID, err)
			}
			extra = string(b)
		}

		var readAt any
		if n.ReadAt != nil {
			readAt = n.ReadAt.UTC()
		}

		_, err = stmt.ExecContext(ctx,
			userID, n.ID, n.Type, n.Title, n.Message,
			boolToInt(n.IsRead), string(n.Priority), n.CreatedAt.UTC(), readAt,
			extra, now,
		)
		if err != nil {
			return fmt.Errorf("caching notification %d: %w", n.ID, err)
		}
	}

	return tx.Commit()
}

// notificationRow mirrors the notifications table.
type notificationRow struct {
	UserID    int          `db:"user_id"`
	ID        int          `db:"id"`
	Type      string       `db:"type"`
	Title     string       `db:"title"`
	Message   string       `db:"message"`
	IsRead    bool         `db:"is_read"`
	Priority  string       `db:"priority"`
	CreatedAt time.Time    `db:"created_at"`
	ReadAt    sql.NullTime `db:"read_at"`
	ExtraData string       `db:"extra_data"`
	FetchedAt time.Time    `db:"fetched_at"`
}

func (r notificationRow) toModel() (model.Notification, error) {
	n := model.Notification{
		ID:        r.ID,
		Type:      r.Type,
		Title:     r.Title,
		Message:   r.Message,
		IsRead:    r.IsRead,
		Priority:  model.ParsePriority(r.Priority),
		CreatedAt: r.CreatedAt,
	}
	if r.ReadAt.Valid {
		t := r.ReadAt.Time
		n.ReadAt = &t
	}
	if r.ExtraData != "" && r.ExtraData != "{}" {
		if err := json.Unmarshal([]byte(r.ExtraData), &n.ExtraData); err != nil {
			return model.Notification{}, fmt.Errorf("unmarshaling extra_data: %w", err)
		}
	}
	return n, nil
}

// GetNotifications returns the cached list for userID, newest first.
func (s *SQLiteStore) GetNotifications(
	ctx context.Context,
	userID int,
) ([]model.Notification, error) {
	var rows []notificationRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying cached notifications: %w", err)
	}

	ns := make([]model.Notification, 0, len(rows))
	for _, r := range rows {
		n, err := r.toModel()
		if err != nil {
			return nil, fmt.Errorf("notification %d: %w", r.ID, err)
		}
		ns = append(ns, n)
	}
	return ns, nil
}

// SaveUnreadCount records the latest unread count for userID.
func (s *SQLiteStore) SaveUnreadCount(ctx context.Context, userID, count int) error {
	if count < 0 {
		count = 0
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO unread_counts (user_id, count, updated_at)
		VALUES (?, ?, ?)`,
		userID, count, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("caching unread count: %w", err)
	}
	return nil
}

// GetUnreadCount returns the cached count or ErrNotCached.
func (s *SQLiteStore) GetUnreadCount(ctx context.Context, userID int) (UnreadCount, error) {
	var uc UnreadCount
	err := s.db.GetContext(ctx, &uc,
		"SELECT count, updated_at FROM unread_counts WHERE user_id = ?", userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return UnreadCount{}, ErrNotCached
	}
	if err != nil {
		return UnreadCount{}, fmt.Errorf("reading cached unread count: %w", err)
	}
	return uc, nil
}

// Purge removes every cached row for userID.
func (s *SQLiteStore) Purge(ctx context.Context, userID int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"notifications", "unread_counts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("purging %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// boolToInt converts a boolean to 0 or 1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
