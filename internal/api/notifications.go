package api

import (
	"context"
	"fmt"

	"github.com/nhle/agri-advisor/internal/model"
)

// UnreadCount returns the number of unread notifications.
func (c *Client) UnreadCount(ctx context.Context, token string) (int, error) {
	var resp unreadCountResponse
	if err := c.getJSON(ctx, token, "/notifications/unread-count", &resp); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}
	return resp.UnreadCount, nil
}

// ListNotifications returns the user's notifications, newest first.
func (c *Client) ListNotifications(ctx context.Context, token string) ([]model.Notification, error) {
	var payload []notificationPayload
	if err := c.getJSON(ctx, token, "/notifications/", &payload); err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}

	out := make([]model.Notification, 0, len(payload))
	for _, p := range payload {
		out = append(out, p.toModel())
	}
	return out, nil
}

// MarkRead marks the given notifications as read.
func (c *Client) MarkRead(ctx context.Context, token string, ids []int) error {
	if err := c.postJSON(ctx, token, "/notifications/mark-read", markReadRequest{NotificationIDs: ids}, nil); err != nil {
		return fmt.Errorf("marking notifications %v read: %w", ids, err)
	}
	return nil
}

// MarkAllRead marks every notification of the user as read.
func (c *Client) MarkAllRead(ctx context.Context, token string) error {
	if err := c.postJSON(ctx, token, "/notifications/mark-all-read", struct{}{}, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// DeleteNotification removes a notification.
func (c *Client) DeleteNotification(ctx context.Context, token string, id int) error {
	if err := c.del(ctx, token, fmt.Sprintf("/notifications/%d", id)); err != nil {
		return fmt.Errorf("deleting notification %d: %w", id, err)
	}
	return nil
}
