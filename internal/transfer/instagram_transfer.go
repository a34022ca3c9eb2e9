package transfer

import (
	"time"

	"github.com/maheshrc27/reelflow/internal/igerror"
)

// Graph API wire shapes.

type CreateContainerRequest struct {
	MediaType   string `json:"media_type"`
	VideoURL    string `json:"video_url"`
	Caption     string `json:"caption"`
	AccessToken string `json:"access_token"`
}

type PublishContainerRequest struct {
	CreationID  string `json:"creation_id"`
	AccessToken string `json:"access_token"`
}

// GraphIDResponse is returned by both media creation and media_publish.
type GraphIDResponse struct {
	ID    string            `json:"id"`
	Error *igerror.APIError `json:"error,omitempty"`
}

type ContainerStatusResponse struct {
	StatusCode string            `json:"status_code"`
	Error      *igerror.APIError `json:"error,omitempty"`
}

type PermalinkResponse struct {
	Permalink string `json:"permalink"`
}

type RefreshTokenResponse struct {
	AccessToken string            `json:"access_token"`
	TokenType   string            `json:"token_type"`
	ExpiresIn   int64             `json:"expires_in"`
	Error       *igerror.APIError `json:"error,omitempty"`
}

// HTTP API shapes.

type PublishRequest struct {
	VideoID string `json:"videoId"`
}

type PostList struct {
	Posts  []*PostSummary `json:"posts"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type PostSummary struct {
	ID           string     `json:"id"`
	VideoID      string     `json:"video_id"`
	Status       string     `json:"status"`
	MediaID      *string    `json:"ig_media_id"`
	Permalink    *string    `json:"ig_permalink"`
	Caption      string     `json:"caption"`
	ErrorCode    *string    `json:"error_code"`
	ErrorMessage *string    `json:"error_message"`
	RetryCount   int        `json:"retry_count"`
	ScheduledAt  *time.Time `json:"scheduled_at"`
	PublishedAt  *time.Time `json:"published_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

type PostStatus struct {
	PostID          string     `json:"post_id"`
	Status          string     `json:"status"`
	InstagramPostID *string    `json:"instagram_post_id"`
	Permalink       *string    `json:"permalink"`
	ErrorCode       *string    `json:"error_code"`
	ErrorMessage    *string    `json:"error_message"`
	RetryCount      int        `json:"retry_count"`
	PublishedAt     *time.Time `json:"published_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
