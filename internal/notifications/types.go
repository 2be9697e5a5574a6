// Package notifications stores and fans out user-facing notifications.
// Rows are durable; delivery to live subscribers is best-effort.
package notifications

import (
	"time"
)

// NotificationType represents the kind of notification
type NotificationType string

const (
	NotifyReminder   NotificationType = "reminder"
	NotifyAutomation NotificationType = "automation"
	NotifyInsight    NotificationType = "insight"
	NotifyAlert      NotificationType = "alert"
	NotifySystem     NotificationType = "system"
)

// Urgency levels for notifications
const (
	UrgencyLow      = 1 // Can wait
	UrgencyMedium   = 2 // Attention soon
	UrgencyHigh     = 3 // Needs attention now
	UrgencyCritical = 4 // Immediate action required
)

// Notification represents a user notification
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message,omitempty"`
	Urgency   int              `json:"urgency"` // 1-4
	Source    string           `json:"source,omitempty"`
	Read      bool             `json:"read"`
	Dismissed bool             `json:"dismissed"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationFilter for querying notifications
type NotificationFilter struct {
	Type      NotificationType
	Urgency   int
	Source    string
	Read      *bool
	Dismissed *bool
	Limit     int
	Offset    int
}

// NotificationStats represents notification statistics
type NotificationStats struct {
	Total       int            `json:"total"`
	Unread      int            `json:"unread"`
	ByType      map[string]int `json:"by_type"`
	ByUrgency   map[int]int    `json:"by_urgency"`
	LastCreated *time.Time     `json:"last_created,omitempty"`
}

// CreateNotificationRequest for creating new notifications
type CreateNotificationRequest struct {
	Type    NotificationType `json:"type"`
	Title   string           `json:"title"`
	Message string           `json:"message,omitempty"`
	Urgency int              `json:"urgency,omitempty"`
	Source  string           `json:"source,omitempty"`
}
