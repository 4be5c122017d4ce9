package dto

import (
	"time"

	"TRIPCOLLAB_BACK-END/internal/models"
)

type NotificationItem struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	ActionURL *string        `json:"action_url,omitempty"`
	Read      bool           `json:"read"`
	CreatedAt string         `json:"created_at"`
}

type NotificationsPagination struct {
	Total       int `json:"total"`
	UnreadCount int `json:"unread_count"`
	Limit       int `json:"limit"`
	Offset      int `json:"offset"`
}

type NotificationsListResponse struct {
	Notifications []NotificationItem      `json:"notifications"`
	Pagination    NotificationsPagination `json:"pagination"`
}

type MarkAllReadResponse struct {
	Message      string `json:"message"`
	UpdatedCount int64  `json:"updated_count"`
}

// NewNotificationItem converts a stored notification for the wire.
func NewNotificationItem(n models.Notification) NotificationItem {
	item := NotificationItem{
		ID:        n.ID.String(),
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Data:      n.Data,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC().Format(time.RFC3339),
	}
	if n.ActionURL != "" {
		url := n.ActionURL
		item.ActionURL = &url
	}
	return item
}
