package transfer

import "time"

// Per-item outcomes reported by scheduler runs.
const (
	ItemSuccess = "success"
	ItemFailed  = "failed"
	ItemPending = "pending"
	ItemSkipped = "skipped"
	ItemWaiting = "waiting"
	ItemError   = "error"
)

type ItemResult struct {
	VideoID    string     `json:"videoId,omitempty"`
	PostID     string     `json:"postId,omitempty"`
	Status     string     `json:"status"`
	Reason     string     `json:"reason,omitempty"`
	ErrorCode  string     `json:"errorCode,omitempty"`
	RetryCount int        `json:"retryCount,omitempty"`
	WillRetry  bool       `json:"willRetry,omitempty"`
	NextRetry  *time.Time `json:"nextRetry,omitempty"`
	MediaID    string     `json:"mediaId,omitempty"`
	Permalink  string     `json:"permalink,omitempty"`
}

type RunReport struct {
	Message   string        `json:"message"`
	Processed int           `json:"processed"`
	Results   []*ItemResult `json:"results"`
}

type TokenRefreshReport struct {
	Checked   int      `json:"checked"`
	Refreshed int      `json:"refreshed"`
	Warned    int      `json:"warned"`
	Errors    []string `json:"errors"`
}
