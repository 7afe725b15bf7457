package model

import "time"

// NotificationKind groups notifications for the frontend.
type NotificationKind string

const (
	KindRegistration NotificationKind = "inscription"
	KindValidation   NotificationKind = "validation"
)

// Notification mirrors the `notifications` table.  A nil AccountID marks an
// admin broadcast.
type Notification struct {
	ID        uint64           `json:"id"`
	AccountID *uint64          `json:"account_id"`
	Message   string           `json:"message"`
	Kind      NotificationKind `json:"kind"`
	Link      string           `json:"link"`
	Icon      string           `json:"icon"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewNotification is the input of the notification sink.
type NewNotification struct {
	AccountID *uint64
	Message   string
	Kind      NotificationKind
	Link      string
	Icon      string
}
