package sync

import (
	"context"
	"errors"
	"net/http"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/nhle/agri-advisor/internal/api"
	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/tests/testutil"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

// fakeClient is an in-memory backend. hook, when set, runs inside every
// action call so tests can observe the optimistic state before the
// "server" answers.
type fakeClient struct {
	mu         gosync.Mutex
	count      int
	countErr   error
	list       []model.Notification
	listErr    error
	actionErr  error
	countCalls int
	listCalls  int
	actions    []string
	hook       func()
}

func (f *fakeClient) UnreadCount(ctx context.Context, token string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return f.count, f.countErr
}

func (f *fakeClient) ListNotifications(ctx context.Context, token string) ([]model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]model.Notification(nil), f.list...), f.listErr
}

func (f *fakeClient) MarkRead(ctx context.Context, token string, ids []int) error {
	return f.action("mark-read")
}

func (f *fakeClient) MarkAllRead(ctx context.Context, token string) error {
	return f.action("mark-all-read")
}

func (f *fakeClient) DeleteNotification(ctx context.Context, token string, id int) error {
	return f.action("delete")
}

func (f *fakeClient) action(name string) error {
	f.mu.Lock()
	hook := f.hook
	f.actions = append(f.actions, name)
	err := f.actionErr
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *fakeClient) calls() (count, list int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countCalls, f.listCalls
}

func sampleList() []model.Notification {
	now := time.Now().UTC()
	return []model.Notification{
		{ID: 1, Title: "Maize price up", Priority: model.PriorityHigh, CreatedAt: now},
		{ID: 2, Title: "Rain expected", CreatedAt: now.Add(-time.Hour)},
		{ID: 3, Title: "Welcome", IsRead: true, CreatedAt: now.Add(-48 * time.Hour)},
	}
}

// hydrated returns a synchronizer whose list and count are loaded.
func hydrated(t *testing.T, fc *fakeClient) *Synchronizer {
	t.Helper()
	s := New(fc, staticToken("tok"))
	require.NoError(t, s.PollUnreadCount(context.Background()))
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(s.Stop)
	return s
}

func TestPollUnreadCount_ReplacesAndRetains(t *testing.T) {
	fc := &fakeClient{count: 4}
	s := New(fc, staticToken("tok"))
	defer s.Stop()

	require.NoError(t, s.PollUnreadCount(context.Background()))
	assert.Equal(t, 4, s.UnreadCount())
	assert.False(t, s.State().LastPoll.IsZero())

	fc.mu.Lock()
	fc.countErr = errors.New("connection refused")
	fc.count = 99
	fc.mu.Unlock()

	assert.Error(t, s.PollUnreadCount(context.Background()))
	assert.Equal(t, 4, s.UnreadCount(), "failed poll keeps the previous count")
}

func TestPollUnreadCount_NeverNegative(t *testing.T) {
	s := New(&fakeClient{count: -3}, staticToken("tok"))
	defer s.Stop()

	require.NoError(t, s.PollUnreadCount(context.Background()))
	assert.Zero(t, s.UnreadCount())
}

func TestNoTokenMeansNoCall(t *testing.T) {
	fc := &fakeClient{}
	s := New(fc, staticToken(""))
	defer s.Stop()

	assert.ErrorIs(t, s.PollUnreadCount(context.Background()), ErrNoSession)
	assert.ErrorIs(t, s.Open(context.Background()), ErrNoSession)
	count, list := fc.calls()
	assert.Zero(t, count)
	assert.Zero(t, list)
}

func TestOpen_IsLazyOneShot(t *testing.T) {
	fc := &fakeClient{list: sampleList()}
	s := New(fc, staticToken("tok"))
	defer s.Stop()

	require.NoError(t, s.Open(context.Background()))
	require.NoError(t, s.Open(context.Background()))

	_, listCalls := fc.calls()
	assert.Equal(t, 1, listCalls, "a non-empty list is not refetched")
	assert.Len(t, s.Notifications(), 3)
}

func TestOpen_FailureLeavesListEmpty(t *testing.T) {
	fc := &fakeClient{listErr: errors.New("boom")}
	s := New(fc, staticToken("tok"))
	defer s.Stop()

	assert.Error(t, s.Open(context.Background()))
	assert.Empty(t, s.Notifications())

	fc.mu.Lock()
	fc.listErr = nil
	fc.list = sampleList()
	fc.mu.Unlock()

	require.NoError(t, s.Open(context.Background()))
	assert.Len(t, s.Notifications(), 3)
}

func TestMarkAllAsRead_OptimisticallyZeroes(t *testing.T) {
	fc := &fakeClient{count: 2, list: sampleList()}
	s := hydrated(t, fc)

	var during State
	fc.hook = func() { during = s.State() }
	fc.mu.Lock()
	fc.count = 0
	fc.mu.Unlock()

	require.NoError(t, s.MarkAllAsRead(context.Background()))

	assert.Zero(t, during.UnreadCount)
	for _, n := range during.Notifications {
		assert.True(t, n.IsRead, "notification %d", n.ID)
		if n.ID == 3 {
			// Already read before the call; left untouched.
			assert.Nil(t, n.ReadAt)
			continue
		}
		assert.NotNil(t, n.ReadAt, "notification %d", n.ID)
	}
	assert.Zero(t, s.UnreadCount())
}

func TestMarkAsRead_DecrementsOnce(t *testing.T) {
	fc := &fakeClient{count: 2, list: sampleList()}
	s := hydrated(t, fc)

	var counts []int
	fc.hook = func() { counts = append(counts, s.UnreadCount()) }
	fc.mu.Lock()
	fc.count = 1
	fc.mu.Unlock()

	require.NoError(t, s.MarkAsRead(context.Background(), 1))
	require.NoError(t, s.MarkAsRead(context.Background(), 1))

	assert.Equal(t, []int{1, 1}, counts, "already-read item does not decrement again")
	assert.True(t, s.Notifications()[0].IsRead)
}

func TestMarkAsRead_FlooredAtZero(t *testing.T) {
	fc := &fakeClient{count: 0}
	s := New(fc, staticToken("tok"))
	defer s.Stop()

	var during int
	fc.hook = func() { during = s.UnreadCount() }

	require.NoError(t, s.MarkAsRead(context.Background(), 42))
	assert.Zero(t, during)
}

func TestDelete_DecrementsOnlyForUnread(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		id        int
		wantCount int
	}{
		{"read item leaves count", 2, 3, 2},
		{"unread item decrements", 2, 1, 1},
		{"unread item at zero stays zero", 0, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClient{count: tt.count, list: sampleList()}
			s := hydrated(t, fc)

			var during State
			fc.hook = func() { during = s.State() }
			fc.mu.Lock()
			fc.count = tt.wantCount
			fc.mu.Unlock()

			require.NoError(t, s.Delete(context.Background(), tt.id))

			assert.Equal(t, tt.wantCount, during.UnreadCount)
			assert.Len(t, during.Notifications, 2)
			for _, n := range during.Notifications {
				assert.NotEqual(t, tt.id, n.ID)
			}
		})
	}
}

func TestActions_RepollCountAfterwards(t *testing.T) {
	fc := &fakeClient{count: 2, list: sampleList()}
	s := hydrated(t, fc)
	before, _ := fc.calls()

	fc.mu.Lock()
	fc.count = 7
	fc.mu.Unlock()

	require.NoError(t, s.MarkAsRead(context.Background(), 1))

	after, _ := fc.calls()
	assert.Equal(t, before+1, after)
	assert.Equal(t, 7, s.UnreadCount(), "server count wins after the action")
}

func TestFailedActionReconciles(t *testing.T) {
	fc := &fakeClient{count: 2, list: sampleList(), actionErr: errors.New("503")}
	s := hydrated(t, fc)

	err := s.Delete(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delete notification")

	assert.Empty(t, s.Notifications(), "list dropped so the next Open refetches")
	assert.Equal(t, 2, s.UnreadCount(), "count re-polled from the server")

	fc.mu.Lock()
	fc.actionErr = nil
	fc.mu.Unlock()

	require.NoError(t, s.Open(context.Background()))
	assert.Len(t, s.Notifications(), 3)
	_, listCalls := fc.calls()
	assert.Equal(t, 2, listCalls)
}

func TestStop_DiscardsLateResults(t *testing.T) {
	fc := &fakeClient{count: 3}
	s := New(fc, staticToken("tok"))
	require.NoError(t, s.PollUnreadCount(context.Background()))

	fc.mu.Lock()
	fc.count = 8
	fc.mu.Unlock()
	fc.hook = s.Stop

	assert.ErrorIs(t, s.MarkAllAsRead(context.Background()), ErrStopped)
	assert.ErrorIs(t, s.PollUnreadCount(context.Background()), ErrStopped)
	assert.Zero(t, s.UnreadCount(), "optimistic state stays, nothing applied after stop")

	_, open := <-s.Updates()
	assert.False(t, open)
	assert.Nil(t, s.WaitForUpdate()())

	s.Stop()
}

func TestUpdates_DeliverLatestState(t *testing.T) {
	fc := &fakeClient{count: 1}
	s := New(fc, staticToken("tok"))
	defer s.Stop()

	require.NoError(t, s.PollUnreadCount(context.Background()))
	fc.mu.Lock()
	fc.count = 5
	fc.mu.Unlock()
	require.NoError(t, s.PollUnreadCount(context.Background()))

	msg, ok := s.WaitForUpdate()().(UpdateMsg)
	require.True(t, ok)
	assert.Equal(t, 5, msg.State.UnreadCount)
}

func TestPollLoop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fc := &fakeClient{count: 1}
	s := New(fc, staticToken("tok"), WithInterval(10*time.Millisecond))
	s.SetVisible(false)
	s.Start()
	s.Start()

	assert.Eventually(t, func() bool {
		c, _ := fc.calls()
		return c == 1
	}, time.Second, 5*time.Millisecond, "immediate poll runs even when hidden")

	time.Sleep(50 * time.Millisecond)
	c, _ := fc.calls()
	assert.Equal(t, 1, c, "hidden ticks are skipped")

	s.SetVisible(true)
	assert.Eventually(t, func() bool {
		c, _ := fc.calls()
		return c >= 3
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	s.Start()
}

func TestRefreshPollsWhileHidden(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fc := &fakeClient{count: 1}
	s := New(fc, staticToken("tok"), WithInterval(time.Hour))
	s.SetVisible(false)
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { c, _ := fc.calls(); return c == 1 }, time.Second, 5*time.Millisecond)
	s.Refresh()
	assert.Eventually(t, func() bool { c, _ := fc.calls(); return c == 2 }, time.Second, 5*time.Millisecond)
}

func TestSynchronizer_AgainstBackend(t *testing.T) {
	b := testutil.NewBackend(t)
	b.AddUser("farmer@example.com", "secret123", false)
	tok := b.IssueToken("farmer@example.com")
	b.SetNotifications(sampleList()...)
	cache := testutil.NewCacheStore(t)

	s := New(api.NewClient(b.BaseURL()), staticToken(tok), WithCache(cache, 1))
	defer s.Stop()
	ctx := context.Background()

	require.NoError(t, s.PollUnreadCount(ctx))
	assert.Equal(t, 2, s.UnreadCount())
	require.NoError(t, s.Open(ctx))

	cached, err := cache.GetNotifications(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, cached, 3)

	entered, release := b.Hold(http.MethodPost, "/notifications/mark-all-read")
	done := make(chan error, 1)
	go func() { done <- s.MarkAllAsRead(ctx) }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("mark-all-read never reached the backend")
	}
	assert.Zero(t, s.UnreadCount(), "zeroed before the server answers")
	release()
	require.NoError(t, <-done)

	uc, err := cache.GetUnreadCount(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, uc.Count)

	b.Fail(http.MethodDelete, "/notifications/2", http.StatusInternalServerError, "db down")
	require.Error(t, s.Delete(ctx, 2))
	assert.Empty(t, s.Notifications())
	assert.Len(t, b.Notifications(), 3)
}
