package models

import "time"

type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Message   string    `db:"message" json:"message"`
	VideoID   *string   `db:"video_id" json:"video_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	NotificationVideoPublished = "video_published"
	NotificationVideoFailed    = "video_failed"
	NotificationTokenExpiring  = "token_expiring"
)
