package models

import "time"

// Video is a generated asset owned by the video subsystem; read-only here
// apart from the publish bookkeeping columns.
type Video struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	Title        string     `db:"title" json:"title"`
	Caption      *string    `db:"caption" json:"caption,omitempty"`
	VideoURL     *string    `db:"video_url" json:"video_url,omitempty"`
	Status       string     `db:"status" json:"status"`
	ScheduledAt  *time.Time `db:"scheduled_at" json:"scheduled_at,omitempty"`
	PublishedAt  *time.Time `db:"published_at" json:"published_at,omitempty"`
	MediaID      *string    `db:"ig_media_id" json:"ig_media_id,omitempty"`
	ErrorMessage *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

const VideoStatusCompleted = "completed"

func (v *Video) URL() string {
	if v.VideoURL == nil {
		return ""
	}
	return *v.VideoURL
}

func (v *Video) CaptionText() string {
	if v.Caption == nil {
		return ""
	}
	return *v.Caption
}
