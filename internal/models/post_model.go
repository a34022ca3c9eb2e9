package models

import "time"

// Post is one attempt at publishing a video to Instagram Reels.
type Post struct {
	ID           string     `db:"id" json:"id"`
	VideoID      string     `db:"video_id" json:"video_id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Caption      string     `db:"caption" json:"caption"`
	Status       string     `db:"status" json:"status"` // uploading, processing, published, pending, failed
	ContainerID  *string    `db:"ig_container_id" json:"ig_container_id,omitempty"`
	MediaID      *string    `db:"ig_media_id" json:"ig_media_id,omitempty"`
	Permalink    *string    `db:"ig_permalink" json:"ig_permalink,omitempty"`
	ErrorCode    *string    `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int        `db:"retry_count" json:"retry_count"`
	MaxRetries   int        `db:"max_retries" json:"max_retries"`
	ScheduledAt  *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusUploading  = "uploading"
	PostStatusProcessing = "processing"
	PostStatusPublished  = "published"
	PostStatusPending    = "pending"
	PostStatusFailed     = "failed"
)

const DefaultMaxRetries = 3

// IsTerminal reports whether no further transition may leave the status.
func IsTerminal(status string) bool {
	return status == PostStatusPublished || status == PostStatusFailed
}
