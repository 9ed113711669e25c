package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/agri-advisor/internal/model"
	"github.com/nhle/agri-advisor/internal/session"
	"github.com/nhle/agri-advisor/internal/store"
	agrisync "github.com/nhle/agri-advisor/internal/sync"
	"github.com/nhle/agri-advisor/internal/theme"
)

var listOffline bool

// notificationsCmd groups the notification commands
var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif", "n"},
	Short:   "List and manage notifications",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	Long: `Lists your notifications. With --offline the last fetched list is
read from the local cache without contacting the backend.`,
	Args: cobra.NoArgs,
	RunE: runNotificationsList,
}

var notificationsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the unread notification count",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsCount,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read [id...]",
	Short: "Mark notifications as read",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNotificationsRead,
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsReadAll,
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotificationsDelete,
}

func init() {
	notificationsListCmd.Flags().BoolVar(&listOffline, "offline", false, "Read the local cache instead of the backend")

	notificationsCmd.AddCommand(notificationsListCmd)
	notificationsCmd.AddCommand(notificationsCountCmd)
	notificationsCmd.AddCommand(notificationsReadCmd)
	notificationsCmd.AddCommand(notificationsReadAllCmd)
	notificationsCmd.AddCommand(notificationsDeleteCmd)
}

// withSynchronizer runs fn against a one-shot synchronizer for the
// signed-in user. No poll goroutine is started.
func withSynchronizer(cmd *cobra.Command, fn func(ctx context.Context, s *agrisync.Synchronizer) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Timeout())
	defer cancel()

	u, err := requireSession(ctx)
	if err != nil {
		return err
	}

	opts := []agrisync.Option{
		agrisync.WithLogger(logger),
		agrisync.WithRequestTimeout(cfg.Timeout()),
	}
	if cache != nil {
		opts = append(opts, agrisync.WithCache(cache, u.ID))
	}

	s := agrisync.New(client, manager, opts...)
	defer s.Stop()

	return fn(ctx, s)
}

func runNotificationsList(cmd *cobra.Command, args []string) error {
	if listOffline {
		return listCached(cmd)
	}

	return withSynchronizer(cmd, func(ctx context.Context, s *agrisync.Synchronizer) error {
		if err := s.Open(ctx); err != nil {
			return err
		}
		if err := s.PollUnreadCount(ctx); err != nil {
			return err
		}
		st := s.State()
		printNotifications(cmd, st.Notifications, st.UnreadCount, time.Now())
		return nil
	})
}

// listCached prints the cached list of the user the stored token
// belongs to.
func listCached(cmd *cobra.Command) error {
	if cache == nil {
		return errors.New("notification cache is disabled")
	}

	tok, err := tokens.Get()
	if err != nil {
		return errNotSignedIn
	}
	claims, err := session.ParseClaims(tok)
	if err != nil || claims.UserID == 0 {
		return errors.New("cannot tell which user the stored token belongs to")
	}

	ctx := cmd.Context()
	ns, err := cache.GetNotifications(ctx, claims.UserID)
	if err != nil {
		return err
	}

	count := 0
	uc, err := cache.GetUnreadCount(ctx, claims.UserID)
	switch {
	case err == nil:
		count = uc.Count
		fmt.Fprintf(cmd.OutOrStdout(), "Cached %s\n", agrisync.TimeAgo(uc.UpdatedAt, time.Now()))
	case errors.Is(err, store.ErrNotCached):
		for _, n := range ns {
			if !n.IsRead {
				count++
			}
		}
	default:
		return err
	}

	printNotifications(cmd, ns, count, time.Now())
	return nil
}

func runNotificationsCount(cmd *cobra.Command, args []string) error {
	return withSynchronizer(cmd, func(ctx context.Context, s *agrisync.Synchronizer) error {
		if err := s.PollUnreadCount(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), s.UnreadCount())
		return nil
	})
}

func runNotificationsRead(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	return withSynchronizer(cmd, func(ctx context.Context, s *agrisync.Synchronizer) error {
		for _, id := range ids {
			if err := s.MarkAsRead(ctx, id); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d as read. %d unread.\n", len(ids), s.UnreadCount())
		return nil
	})
}

func runNotificationsReadAll(cmd *cobra.Command, args []string) error {
	return withSynchronizer(cmd, func(ctx context.Context, s *agrisync.Synchronizer) error {
		if err := s.MarkAllAsRead(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All notifications marked as read")
		return nil
	})
}

func runNotificationsDelete(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	return withSynchronizer(cmd, func(ctx context.Context, s *agrisync.Synchronizer) error {
		if err := s.Delete(ctx, ids[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted notification %d\n", ids[0])
		return nil
	})
}

func parseIDs(args []string) ([]int, error) {
	ids := make([]int, 0, len(args))
	for _, a := range args {
		id, err := strconv.Atoi(a)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid notification id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printNotifications(cmd *cobra.Command, ns []model.Notification, unread int, now time.Time) {
	out := cmd.OutOrStdout()
	if len(ns) == 0 {
		fmt.Fprintln(out, "No notifications yet")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "", "PRIORITY", "TITLE", "WHEN").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Padding(0, 1)
			}
			s := lipgloss.NewStyle().Padding(0, 1)
			if row >= 0 && row < len(ns) && ns[row].IsRead {
				s = s.Inherit(theme.DimmedStyle)
			}
			return s
		})

	for _, n := range ns {
		marker := "•"
		if n.IsRead {
			marker = ""
		}
		t.Row(strconv.Itoa(n.ID), marker, string(n.Priority), n.Title, agrisync.TimeAgo(n.CreatedAt, now))
	}

	fmt.Fprintln(out, t.Render())
	fmt.Fprintf(out, "%d unread\n", unread)
}
