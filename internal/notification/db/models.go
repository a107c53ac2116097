package db

import "time"

// 配信状態。
const (
	StatusProcessing = "processing"
	StatusSent       = "sent"
	StatusFailed     = "failed"
)

// NotificationLog は通知の配信記録。
type NotificationLog struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Message       string    `json:"message"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	Recipient     string    `json:"recipient,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
