package model

import "time"

// TypeCode identifies the kind of business event a notification represents.
type TypeCode string

const (
	TypeReportApproved   TypeCode = "report_approved"
	TypeReportRejected   TypeCode = "report_rejected"
	TypeReportReminder   TypeCode = "report_reminder"
	TypeRoundStarting    TypeCode = "round_starting"
	TypeRoundCancelled   TypeCode = "round_cancelled"
	TypeMeetingScheduled TypeCode = "meeting_scheduled"
	TypeChatMention      TypeCode = "chat_mention"
)

// Notification is the durable record persisted before any delivery attempt.
// Delivery is best-effort; this row is what the client can always poll.
type Notification struct {
	ID          string
	RecipientID string
	TypeCode    TypeCode
	Title       string
	Message     string
	LinkPath    string
	ReadAt      *time.Time
	CreatedAt   time.Time
}

// LiveEvent is the payload pushed over a live connection.
// NotificationID is nil for batch events that fan out to many recipients.
type LiveEvent struct {
	NotificationID *string   `json:"notificationId,omitempty"`
	TypeCode       TypeCode  `json:"typeCode"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	LinkPath       string    `json:"linkPath,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
