package model

import "time"

// User is the profile snapshot returned by GET /v1/auth/me.
type User struct {
	// ID is the backend identifier of the account.
	ID int `json:"id"`

	// Email is the login identity of the account.
	Email string `json:"email"`

	// FullName, Phone and Location are optional profile fields.
	FullName *string `json:"full_name"`
	Phone    *string `json:"phone"`
	Location *string `json:"location"`

	// IsActive reports whether the account is enabled.
	IsActive bool `json:"is_active"`

	// IsSuperuser grants access to the admin screens.
	IsSuperuser bool `json:"is_superuser"`

	// CreatedAt is when the account was registered.
	CreatedAt time.Time `json:"created_at"`

	// Preferences.
	FavoriteCrops       []string `json:"favorite_crops,omitempty"`
	PreferredLanguage   string   `json:"preferred_language,omitempty"`
	NotificationEnabled *bool    `json:"notification_enabled,omitempty"`
}

// DisplayName returns the full name when set, otherwise the email.
func (u User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}

// Clone returns a deep copy so callers cannot mutate session-owned state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.FullName = cloneString(u.FullName)
	c.Phone = cloneString(u.Phone)
	c.Location = cloneString(u.Location)
	if u.FavoriteCrops != nil {
		c.FavoriteCrops = append([]string(nil), u.FavoriteCrops...)
	}
	if u.NotificationEnabled != nil {
		v := *u.NotificationEnabled
		c.NotificationEnabled = &v
	}
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
