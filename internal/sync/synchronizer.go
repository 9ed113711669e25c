// Package sync keeps the client's view of the user's notifications in step
// with the backend: a background poll of the unread count, a lazily loaded
// list, and optimistic local mutations.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/agri-advisor/internal/logging"
	"github.com/nhle/agri-advisor/internal/model"
)

// DefaultInterval is the unread-count poll period.
const DefaultInterval = 30 * time.Second

// defaultRequestTimeout bounds each backend call made by the synchronizer.
const defaultRequestTimeout = 30 * time.Second

var (
	// ErrStopped is returned when a response arrives after Stop and was
	// therefore discarded.
	ErrStopped = errors.New("synchronizer stopped")

	// ErrNoSession is returned when there is no token to call the backend with.
	ErrNoSession = errors.New("no active session")
)

// Client is the backend collaborator. *api.Client implements it.
type Client interface {
	UnreadCount(ctx context.Context, token string) (int, error)
	ListNotifications(ctx context.Context, token string) ([]model.Notification, error)
	MarkRead(ctx context.Context, token string, ids []int) error
	MarkAllRead(ctx context.Context, token string) error
	DeleteNotification(ctx context.Context, token string, id int) error
}

// TokenSource supplies the current bearer token. *session.Manager
// implements it.
type TokenSource interface {
	Token() string
}

// Cache receives every successful fetch. *store.SQLiteStore implements it.
type Cache interface {
	SaveNotifications(ctx context.Context, userID int, ns []model.Notification) error
	SaveUnreadCount(ctx context.Context, userID, count int) error
}

// State is a copy of the synchronizer's local view.
type State struct {
	UnreadCount   int
	Notifications []model.Notification
	LastPoll      time.Time
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithInterval sets the poll period. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithRequestTimeout bounds each backend call.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithCache writes successful fetches for userID to c.
func WithCache(c Cache, userID int) Option {
	return func(s *Synchronizer) {
		s.cache = c
		s.cacheUserID = userID
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logging.OrNop(l)
	}
}

// Synchronizer owns the local notification list and unread count for one
// signed-in session. It is created when the session becomes authenticated
// and stopped when it ends.
//
// Poll results and action results are applied last-writer-wins: each
// successful count response replaces the local count outright.
type Synchronizer struct {
	client         Client
	tokens         TokenSource
	cache          Cache
	cacheUserID    int
	logger         *zap.Logger
	interval       time.Duration
	requestTimeout time.Duration

	mu       gosync.Mutex
	count    int
	list     []model.Notification
	lastPoll time.Time
	visible  bool
	running  bool
	stopped  bool

	updates   chan UpdateMsg
	triggerCh chan struct{}
	stopCh    chan struct{}
	done      chan struct{}
	pollCtx   context.Context
	cancel    context.CancelFunc
}

// New creates a Synchronizer. Call Start to begin polling.
func New(client Client, tokens TokenSource, opts ...Option) *Synchronizer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Synchronizer{
		client:         client,
		tokens:         tokens,
		logger:         zap.NewNop(),
		interval:       DefaultInterval,
		requestTimeout: defaultRequestTimeout,
		visible:        true,
		updates:        make(chan UpdateMsg, 1),
		triggerCh:      make(chan struct{}, 1),
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
		pollCtx:        ctx,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the local view.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// UnreadCount returns the local unread count.
func (s *Synchronizer) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Notifications returns a copy of the local list.
func (s *Synchronizer) Notifications() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneList(s.list)
}

// PollUnreadCount fetches the unread count. Success replaces the local
// count; failure is logged and the previous count is kept.
func (s *Synchronizer) PollUnreadCount(ctx context.Context) error {
	tok := s.tokens.Token()
	if tok == "" {
		return ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	n, err := s.client.UnreadCount(ctx, tok)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("polling unread count failed", zap.Error(err))
		return fmt.Errorf("polling unread count: %w", err)
	}
	s.count = max(n, 0)
	s.lastPoll = time.Now()
	count := s.count
	s.publishLocked()
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveUnreadCount(ctx, s.cacheUserID, count); err != nil {
			s.logger.Warn("caching unread count failed", zap.Error(err))
		}
	}
	return nil
}

// Open hydrates the list the first time the panel opens. It only
// fetches while the local list is empty; success replaces the list and
// failure leaves it empty.
func (s *Synchronizer) Open(ctx context.Context) error {
	s.mu.Lock()
	skip := s.stopped || len(s.list) > 0
	s.mu.Unlock()
	if skip {
		return nil
	}

	tok := s.tokens.Token()
	if tok == "" {
		return ErrNoSession
	}

	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	list, err := s.client.ListNotifications(ctx, tok)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("fetching notifications failed", zap.Error(err))
		return fmt.Errorf("fetching notifications: %w", err)
	}
	s.list = cloneList(list)
	s.publishLocked()
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.SaveNotifications(ctx, s.cacheUserID, list); err != nil {
			s.logger.Warn("caching notifications failed", zap.Error(err))
		}
	}
	return nil
}

// MarkAsRead flips the item to read and decrements the count (floored at
// zero), then tells the backend. An item already read locally is not part
// of the unread count, so marking it again leaves the count alone; ids not
// in the local list still decrement and the next poll corrects any drift.
func (s *Synchronizer) MarkAsRead(ctx context.Context, id int) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 || !s.list[idx].IsRead {
		s.count = max(s.count-1, 0)
	}
	if idx >= 0 {
		markRead(&s.list[idx], time.Now())
	}
	s.publishLocked()
	s.mu.Unlock()

	return s.mutate(ctx, "mark notification read", func(ctx context.Context, tok string) error {
		return s.client.MarkRead(ctx, tok, []int{id})
	})
}

// MarkAllAsRead marks every local item read and zeroes the count, then
// tells the backend.
func (s *Synchronizer) MarkAllAsRead(ctx context.Context) error {
	s.mu.Lock()
	now := time.Now()
	for i := range s.list {
		markRead(&s.list[i], now)
	}
	s.count = 0
	s.publishLocked()
	s.mu.Unlock()

	return s.mutate(ctx, "mark all notifications read", s.client.MarkAllRead)
}

// Delete removes the item locally, decrementing the count if it was
// unread, then tells the backend.
func (s *Synchronizer) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	if idx := s.indexLocked(id); idx >= 0 {
		if !s.list[idx].IsRead {
			s.count = max(s.count-1, 0)
		}
		s.list = append(s.list[:idx:idx], s.list[idx+1:]...)
	}
	s.publishLocked()
	s.mu.Unlock()

	return s.mutate(ctx, "delete notification", func(ctx context.Context, tok string) error {
		return s.client.DeleteNotification(ctx, tok, id)
	})
}

// mutate issues an action call after its optimistic update. On failure
// the local list is dropped so the next Open refetches it; either way the
// count is re-polled.
func (s *Synchronizer) mutate(ctx context.Context, op string, call func(context.Context, string) error) error {
	tok := s.tokens.Token()
	if tok == "" {
		return ErrNoSession
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	err := call(reqCtx, tok)
	cancel()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if err != nil {
		s.list = nil
		s.publishLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("notification action failed, reconciling", zap.String("op", op), zap.Error(err))
	}

	// The count refresh must run even when the caller's context is
	// already done.
	if pollErr := s.PollUnreadCount(context.WithoutCancel(ctx)); pollErr != nil && !errors.Is(pollErr, ErrStopped) {
		s.logger.Debug("count refresh after action failed", zap.Error(pollErr))
	}

	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Synchronizer) indexLocked(id int) int {
	for i := range s.list {
		if s.list[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) stateLocked() State {
	return State{
		UnreadCount:   s.count,
		Notifications: cloneList(s.list),
		LastPoll:      s.lastPoll,
	}
}

func markRead(n *model.Notification, now time.Time) {
	if n.IsRead {
		return
	}
	n.IsRead = true
	n.ReadAt = &now
}

func cloneList(ns []model.Notification) []model.Notification {
	if ns == nil {
		return nil
	}
	return append([]model.Notification(nil), ns...)
}
