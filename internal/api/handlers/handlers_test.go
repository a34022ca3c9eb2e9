package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/reelflow/internal/jobs"
	"github.com/maheshrc27/reelflow/internal/service"
	"github.com/maheshrc27/reelflow/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPostService struct{ mock.Mock }

func (m *mockPostService) List(ctx context.Context, userID, status string, limit, offset int) (*transfer.PostList, error) {
	args := m.Called(userID, status, limit, offset)
	list, _ := args.Get(0).(*transfer.PostList)
	return list, args.Error(1)
}

func (m *mockPostService) PostInfo(ctx context.Context, postID, userID string) (*transfer.PostStatus, error) {
	args := m.Called(postID, userID)
	st, _ := args.Get(0).(*transfer.PostStatus)
	return st, args.Error(1)
}

func (m *mockPostService) RequestPublish(ctx context.Context, userID, videoID string) error {
	return m.Called(userID, videoID).Error(0)
}

func newTestApp(register func(app *fiber.App)) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	})
	register(app)
	return app
}

func decode(t *testing.T, body io.Reader) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestListPosts(t *testing.T) {
	s := new(mockPostService)
	s.On("List", "user-1", "failed", 5, 10).Return(&transfer.PostList{
		Posts: []*transfer.PostSummary{{ID: "p1", Status: "failed"}},
		Total: 11, Limit: 5, Offset: 10,
	}, nil)

	h := NewPostHandler(s)
	app := newTestApp(func(app *fiber.App) { app.Get("/posts", h.ListPosts) })

	resp, err := app.Test(httptest.NewRequest("GET", "/posts?status=failed&limit=5&offset=10", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.EqualValues(t, 11, body["total"])
	assert.Len(t, body["posts"], 1)
	s.AssertExpectations(t)
}

func TestListPosts_Defaults(t *testing.T) {
	s := new(mockPostService)
	s.On("List", "user-1", "", service.DefaultPageSize, 0).Return(&transfer.PostList{Posts: []*transfer.PostSummary{}}, nil)

	h := NewPostHandler(s)
	app := newTestApp(func(app *fiber.App) { app.Get("/posts", h.ListPosts) })

	resp, err := app.Test(httptest.NewRequest("GET", "/posts", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	s.AssertExpectations(t)
}

func TestGetPost(t *testing.T) {
	msg := "Instagramの認証が期限切れです。設定から再連携してください。"
	code := "TOKEN_EXPIRED"
	s := new(mockPostService)
	s.On("PostInfo", "p1", "user-1").Return(&transfer.PostStatus{PostID: "p1", Status: "failed", ErrorCode: &code, ErrorMessage: &msg, RetryCount: 1}, nil)
	s.On("PostInfo", "other", "user-1").Return(nil, service.ErrNotFound)

	h := NewPostHandler(s)
	app := newTestApp(func(app *fiber.App) { app.Get("/posts/:id", h.GetPost) })

	resp, err := app.Test(httptest.NewRequest("GET", "/posts/p1", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := decode(t, resp.Body)
	assert.Equal(t, "p1", body["post_id"])
	assert.Equal(t, msg, body["error_message"])

	resp, err = app.Test(httptest.NewRequest("GET", "/posts/other", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestPublish(t *testing.T) {
	const videoID = "3b0f3f0c-1d7a-4a58-8d43-6b0a3b1b2c10"
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"accepted", nil, fiber.StatusAccepted},
		{"invalid id", service.ErrInvalidVideoID, fiber.StatusBadRequest},
		{"not found", service.ErrNotFound, fiber.StatusNotFound},
		{"not ready", service.ErrNotReady, fiber.StatusBadRequest},
		{"no credential", service.ErrNoCredential, fiber.StatusBadRequest},
		{"duplicate", service.ErrAlreadyPublishing, fiber.StatusConflict},
		{"queue down", errors.New("redis: connection refused"), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := new(mockPostService)
			s.On("RequestPublish", "user-1", videoID).Return(tc.err)

			h := NewPostHandler(s)
			app := newTestApp(func(app *fiber.App) { app.Post("/publish", h.Publish) })

			req := httptest.NewRequest("POST", "/publish", strings.NewReader(`{"videoId":"`+videoID+`"}`))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			s.AssertExpectations(t)
		})
	}
}

func TestPublish_BadBody(t *testing.T) {
	h := NewPostHandler(new(mockPostService))
	app := newTestApp(func(app *fiber.App) { app.Post("/publish", h.Publish) })

	req := httptest.NewRequest("POST", "/publish", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

type fakeRunner struct {
	report *transfer.RunReport
	err    error
}

func (f fakeRunner) RunScheduled(context.Context) (*transfer.RunReport, error) { return f.report, f.err }
func (f fakeRunner) RunRetries(context.Context) (*transfer.RunReport, error)   { return f.report, f.err }

func TestCronHandler(t *testing.T) {
	report := &transfer.RunReport{
		Message:   "Scheduled publish completed",
		Processed: 1,
		Results:   []*transfer.ItemResult{{VideoID: "v1", Status: transfer.ItemSuccess, MediaID: "m1"}},
	}

	cases := []struct {
		name   string
		runner fakeRunner
		status int
	}{
		{"ok", fakeRunner{report: report}, fiber.StatusOK},
		{"selection failure", fakeRunner{err: errors.New("db down")}, fiber.StatusInternalServerError},
		{"busy", fakeRunner{err: job.ErrRunInProgress}, fiber.StatusConflict},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewCronHandler(tc.runner)
			app := fiber.New()
			app.Get("/cron/publish-scheduled", h.PublishScheduled)
			app.Get("/cron/retry-failed", h.RetryFailed)

			for _, path := range []string{"/cron/publish-scheduled", "/cron/retry-failed"} {
				resp, err := app.Test(httptest.NewRequest("GET", path, nil))
				require.NoError(t, err)
				assert.Equal(t, tc.status, resp.StatusCode)
			}
		})
	}

	h := NewCronHandler(fakeRunner{report: report})
	app := fiber.New()
	app.Get("/cron/publish-scheduled", h.PublishScheduled)
	resp, err := app.Test(httptest.NewRequest("GET", "/cron/publish-scheduled", nil))
	require.NoError(t, err)

	body := decode(t, resp.Body)
	assert.Equal(t, "Scheduled publish completed", body["message"])
	assert.EqualValues(t, 1, body["processed"])
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "success", results[0].(map[string]any)["status"])
	assert.Equal(t, "m1", results[0].(map[string]any)["mediaId"])
}
