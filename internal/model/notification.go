package model

import (
	"strings"
	"time"
)

// Priority is the urgency level the backend assigns to a notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority normalizes a raw priority string. Unknown values map to
// PriorityNormal, which is the backend default.
func ParsePriority(s string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(s))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	case PriorityUrgent:
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// Notification represents an advisory message delivered to the user
// (price alerts, weather warnings, agent recommendations).
type Notification struct {
	// ID is the backend identifier, stable for the notification's lifetime.
	ID int `json:"id"`

	// Type is the backend category, e.g. "price_alert" or "weather_warning".
	Type string `json:"type"`

	// Title and Message are the display text.
	Title   string `json:"title"`
	Message string `json:"message"`

	// IsRead is only changed by explicit mark-read actions.
	IsRead bool `json:"is_read"`

	// Priority is one of low, normal, high, urgent.
	Priority Priority `json:"priority"`

	// CreatedAt is immutable.
	CreatedAt time.Time `json:"created_at"`

	// ReadAt is set by the server once the notification is read.
	ReadAt *time.Time `json:"read_at,omitempty"`

	// ExtraData is an opaque payload (confidence score, suggested price, ...)
	// passed through for display.
	ExtraData map[string]any `json:"extra_data,omitempty"`
}
