package api

import (
	"strings"
	"time"

	"github.com/nhle/agri-advisor/internal/model"
)

// TokenResponse is the response from POST /auth/login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
}

// unreadCountResponse is the response from GET /notifications/unread-count.
type unreadCountResponse struct {
	UnreadCount int `json:"unread_count"`
}

// markReadRequest is the body of POST /notifications/mark-read.
type markReadRequest struct {
	NotificationIDs []int `json:"notification_ids"`
}

// userPayload is the wire shape of GET /v1/auth/me. Timestamps arrive
// with or without a zone depending on the backend database.
type userPayload struct {
	ID                  int      `json:"id"`
	Email               string   `json:"email"`
	FullName            *string  `json:"full_name"`
	Phone               *string  `json:"phone"`
	Location            *string  `json:"location"`
	IsActive            bool     `json:"is_active"`
	IsSuperuser         bool     `json:"is_superuser"`
	CreatedAt           string   `json:"created_at"`
	FavoriteCrops       []string `json:"favorite_crops"`
	PreferredLanguage   string   `json:"preferred_language"`
	NotificationEnabled *bool    `json:"notification_enabled"`
}

func (p userPayload) toModel() *model.User {
	return &model.User{
		ID:                  p.ID,
		Email:               p.Email,
		FullName:            p.FullName,
		Phone:               p.Phone,
		Location:            p.Location,
		IsActive:            p.IsActive,
		IsSuperuser:         p.IsSuperuser,
		CreatedAt:           parseTime(p.CreatedAt),
		FavoriteCrops:       p.FavoriteCrops,
		PreferredLanguage:   p.PreferredLanguage,
		NotificationEnabled: p.NotificationEnabled,
	}
}

// notificationPayload is the wire shape of one entry of GET /notifications/.
type notificationPayload struct {
	ID        int            `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	IsRead    bool           `json:"is_read"`
	Priority  string         `json:"priority"`
	CreatedAt string         `json:"created_at"`
	ReadAt    *string        `json:"read_at"`
	ExtraData map[string]any `json:"extra_data"`
}

func (p notificationPayload) toModel() model.Notification {
	n := model.Notification{
		ID:        p.ID,
		Type:      p.Type,
		Title:     p.Title,
		Message:   p.Message,
		IsRead:    p.IsRead,
		Priority:  model.ParsePriority(p.Priority),
		CreatedAt: parseTime(p.CreatedAt),
		ExtraData: p.ExtraData,
	}
	if p.ReadAt != nil && *p.ReadAt != "" {
		t := parseTime(*p.ReadAt)
		n.ReadAt = &t
	}
	return n
}

// timeLayouts are tried in order. Zone-less layouts are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// parseTime parses a backend timestamp, returning the zero time when no
// layout matches.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}

	return time.Time{}
}
