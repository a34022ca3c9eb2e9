// Package graph drives the Instagram Graph API Reels publish sequence. It does
// no persistence; callers record the returned ids themselves.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/maheshrc27/reelflow/internal/igerror"
	"github.com/maheshrc27/reelflow/internal/transfer"
)

const (
	DefaultBaseURL      = "https://graph.facebook.com/v18.0"
	DefaultTokenBaseURL = "https://graph.instagram.com"

	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollAttempts = 45

	StatusInProgress = "IN_PROGRESS"
	StatusFinished   = "FINISHED"
	StatusError      = "ERROR"
	StatusExpired    = "EXPIRED"
)

// Client talks to the Graph API over an injected *http.Client.
type Client struct {
	baseURL         string
	tokenBaseURL    string
	httpClient      *http.Client
	pollInterval    time.Duration
	maxPollAttempts int
	logger          *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithTokenBaseURL(u string) Option {
	return func(c *Client) { c.tokenBaseURL = strings.TrimRight(u, "/") }
}

// WithPolling sets the wait between status polls and the number of polls.
func WithPolling(interval time.Duration, maxAttempts int) Option {
	return func(c *Client) {
		if interval > 0 {
			c.pollInterval = interval
		}
		if maxAttempts > 0 {
			c.maxPollAttempts = maxAttempts
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		tokenBaseURL:    DefaultTokenBaseURL,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		pollInterval:    DefaultPollInterval,
		maxPollAttempts: DefaultMaxPollAttempts,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PublishInput is everything one publish attempt needs.
type PublishInput struct {
	AccountID   string
	AccessToken string
	VideoURL    string
	Caption     string

	// OnContainer, when set, is called once the container exists and before
	// polling starts.
	OnContainer func(ctx context.Context, containerID string)
}

// PublishResult carries the remote ids. On failure ContainerID is still set
// if the container was created before the failing step.
type PublishResult struct {
	ContainerID string
	MediaID     string
	Permalink   string
}

// PublishReel runs create container → poll status → publish → permalink.
// Every step runs in order; each call starts a fresh container. The returned
// error is one of *igerror.APIError, *igerror.ProcessingError, a transport
// error, or a context error.
func (c *Client) PublishReel(ctx context.Context, in PublishInput) (PublishResult, error) {
	var result PublishResult

	containerID, err := c.createContainer(ctx, in)
	if err != nil {
		return result, fmt.Errorf("create container: %w", err)
	}
	result.ContainerID = containerID

	if in.OnContainer != nil {
		in.OnContainer(ctx, containerID)
	}

	if err := c.waitForContainer(ctx, containerID, in.AccessToken); err != nil {
		return result, err
	}

	mediaID, err := c.publishContainer(ctx, in.AccountID, containerID, in.AccessToken)
	if err != nil {
		return result, fmt.Errorf("publish container %s: %w", containerID, err)
	}
	result.MediaID = mediaID

	permalink, err := c.fetchPermalink(ctx, mediaID, in.AccessToken)
	if err != nil {
		c.logger.Debug("permalink lookup failed", "media_id", mediaID, "error", err)
	}
	result.Permalink = permalink

	return result, nil
}

func (c *Client) createContainer(ctx context.Context, in PublishInput) (string, error) {
	payload := transfer.CreateContainerRequest{
		MediaType:   "REELS",
		VideoURL:    in.VideoURL,
		Caption:     in.Caption,
		AccessToken: in.AccessToken,
	}

	var resp transfer.GraphIDResponse
	status, err := c.postJSON(ctx, fmt.Sprintf("%s/%s/media", c.baseURL, url.PathEscape(in.AccountID)), payload, &resp)
	if err != nil {
		return "", err
	}
	if err := responseError(status, resp.Error, "Failed to create media container"); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &igerror.APIError{Message: "no container id returned from Instagram", StatusCode: status}
	}
	return resp.ID, nil
}

// waitForContainer polls until FINISHED. Failed polls are skipped and any
// other status keeps the loop going; only an exhausted budget is an error,
// carrying the last status seen.
func (c *Client) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	lastStatus := StatusInProgress
	q := url.Values{}
	q.Set("fields", "status_code")
	q.Set("access_token", accessToken)
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(containerID), q.Encode())

	for attempt := 1; attempt <= c.maxPollAttempts; attempt++ {
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		var resp transfer.ContainerStatusResponse
		status, err := c.getJSON(ctx, endpoint, &resp)
		if err != nil || status != http.StatusOK || resp.Error != nil {
			c.logger.Debug("container status poll skipped", "container_id", containerID, "attempt", attempt, "status", status, "error", err)
			continue
		}

		if resp.StatusCode != "" {
			lastStatus = resp.StatusCode
		}
		if lastStatus == StatusFinished {
			return nil
		}
	}

	return &igerror.ProcessingError{ContainerID: containerID, LastStatus: lastStatus, Attempts: c.maxPollAttempts}
}

func (c *Client) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	payload := transfer.PublishContainerRequest{
		CreationID:  containerID,
		AccessToken: accessToken,
	}

	var resp transfer.GraphIDResponse
	status, err := c.postJSON(ctx, fmt.Sprintf("%s/%s/media_publish", c.baseURL, url.PathEscape(accountID)), payload, &resp)
	if err != nil {
		return "", err
	}
	if err := responseError(status, resp.Error, "Failed to publish media"); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", &igerror.APIError{Message: "no media id returned from Instagram", StatusCode: status}
	}
	return resp.ID, nil
}

func (c *Client) fetchPermalink(ctx context.Context, mediaID, accessToken string) (string, error) {
	q := url.Values{}
	q.Set("fields", "permalink")
	q.Set("access_token", accessToken)

	var resp transfer.PermalinkResponse
	status, err := c.getJSON(ctx, fmt.Sprintf("%s/%s?%s", c.baseURL, url.PathEscape(mediaID), q.Encode()), &resp)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("unexpected status code from Instagram: %d", status)
	}
	return resp.Permalink, nil
}

func responseError(status int, apiErr *igerror.APIError, fallback string) error {
	if apiErr != nil {
		apiErr.StatusCode = status
		if apiErr.Message == "" {
			apiErr.Message = fallback
		}
		return apiErr
	}
	if status < 200 || status >= 300 {
		return &igerror.APIError{Message: fallback, StatusCode: status}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("error creating request: %w", err)
	}
	return c.do(req, out)
}

// do decodes the body into out whatever the status; Graph errors arrive as
// JSON on 4xx responses. A body that isn't JSON is only an error on 2xx.
func (c *Client) do(req *http.Request, out any) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.StatusCode, fmt.Errorf("error parsing response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// IsTransport reports whether err came from the HTTP transport rather than
// from a Graph response.
func IsTransport(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
