package service

import (
	"context"
	"errors"
	"testing"
	"time"

	config "github.com/maheshrc27/reelflow/configs"
	"github.com/maheshrc27/reelflow/internal/models"
	"github.com/maheshrc27/reelflow/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEnqueuer struct {
	queued []string
	err    error
}

func (f *fakeEnqueuer) EnqueuePublish(_ context.Context, videoID string) error {
	if f.err != nil {
		return f.err
	}
	f.queued = append(f.queued, videoID)
	return nil
}

type memCredentials struct {
	creds map[string]*models.InstagramCredential
}

func (m *memCredentials) GetByUserID(_ context.Context, userID string) (*models.InstagramCredential, error) {
	return m.creds[userID], nil
}

func (m *memCredentials) ListExpiring(_ context.Context, before time.Time) ([]*models.InstagramCredential, error) {
	var out []*models.InstagramCredential
	for _, c := range m.creds {
		if c.TokenExpiresAt == nil || !c.TokenExpiresAt.After(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCredentials) UpdateToken(_ context.Context, id, accessToken string, expiresAt time.Time) error {
	for _, c := range m.creds {
		if c.ID == id {
			c.AccessToken = accessToken
			c.TokenExpiresAt = &expiresAt
			return nil
		}
	}
	return errors.New("credential not found")
}

func (m *memCredentials) CreateIfMissing(_ context.Context, cred *models.InstagramCredential) (bool, error) {
	if _, ok := m.creds[cred.UserID]; ok {
		return false, nil
	}
	m.creds[cred.UserID] = cred
	return true, nil
}

const testSecret = "0123456789abcdef0123456789abcdef"

func connectedCredentials(t *testing.T, userID string) *memCredentials {
	t.Helper()
	sealed, err := utils.Encrypt([]byte("plain-token"), []byte(testSecret))
	require.NoError(t, err)
	return &memCredentials{creds: map[string]*models.InstagramCredential{
		userID: {ID: "cred-1", UserID: userID, AccountID: "1784", AccessToken: sealed},
	}}
}

func newTestPostService(t *testing.T, posts *memPosts, videos *memVideos, q PublishEnqueuer) PostService {
	cs := NewCredentialService(config.Config{SecretKey: testSecret}, connectedCredentials(t, "user-1"))
	return NewPostService(posts, videos, cs, q)
}

func TestPostService_RequestPublish(t *testing.T) {
	video := testVideo()
	q := &fakeEnqueuer{}
	s := newTestPostService(t, newMemPosts(), newMemVideos(video), q)

	require.NoError(t, s.RequestPublish(context.Background(), "user-1", video.ID))
	assert.Equal(t, []string{video.ID}, q.queued)
}

func TestPostService_RequestPublishRejections(t *testing.T) {
	video := testVideo()

	notReady := testVideo()
	notReady.ID = "0b7e8f0c-1d7a-4a58-8d43-6b0a3b1b2c11"
	notReady.Status = "generating"

	noURL := testVideo()
	noURL.ID = "0b7e8f0c-1d7a-4a58-8d43-6b0a3b1b2c12"
	noURL.VideoURL = nil

	published := testVideo()
	published.ID = "0b7e8f0c-1d7a-4a58-8d43-6b0a3b1b2c13"
	published.PublishedAt = &fixedNow

	tests := []struct {
		name    string
		userID  string
		videoID string
		posts   *memPosts
		want    error
	}{
		{"bad id", "user-1", "not-a-uuid", newMemPosts(), ErrInvalidVideoID},
		{"missing video", "user-1", "9d5c3a53-4f0e-4b8a-9d67-1f2e3d4c5b6a", newMemPosts(), ErrNotFound},
		{"someone else's video", "user-2", video.ID, newMemPosts(), ErrNotFound},
		{"not completed", "user-1", notReady.ID, newMemPosts(), ErrNotReady},
		{"no url", "user-1", noURL.ID, newMemPosts(), ErrNotReady},
		{"already published", "user-1", published.ID, newMemPosts(), ErrAlreadyPublishing},
		{"in flight", "user-1", video.ID, newMemPosts(&models.Post{ID: "p1", VideoID: video.ID, Status: models.PostStatusPending}), ErrAlreadyPublishing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeEnqueuer{}
			s := newTestPostService(t, tt.posts, newMemVideos(video, notReady, noURL, published), q)

			err := s.RequestPublish(context.Background(), tt.userID, tt.videoID)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, q.queued)
		})
	}
}

func TestPostService_RequestPublishAfterPermanentFailure(t *testing.T) {
	video := testVideo()
	q := &fakeEnqueuer{}
	posts := newMemPosts(&models.Post{ID: "p1", VideoID: video.ID, Status: models.PostStatusFailed, RetryCount: 3})
	s := newTestPostService(t, posts, newMemVideos(video), q)

	require.NoError(t, s.RequestPublish(context.Background(), "user-1", video.ID))
	assert.Len(t, q.queued, 1)
}

func TestPostService_RequestPublishWithoutCredential(t *testing.T) {
	video := testVideo()
	video.UserID = "user-9"
	q := &fakeEnqueuer{}
	s := newTestPostService(t, newMemPosts(), newMemVideos(video), q)

	err := s.RequestPublish(context.Background(), "user-9", video.ID)
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestPostService_RequestPublishDuplicateTask(t *testing.T) {
	video := testVideo()
	s := newTestPostService(t, newMemPosts(), newMemVideos(video), &fakeEnqueuer{err: ErrAlreadyPublishing})

	err := s.RequestPublish(context.Background(), "user-1", video.ID)
	assert.ErrorIs(t, err, ErrAlreadyPublishing)
}

func TestPostService_PostInfo(t *testing.T) {
	posts := newMemPosts(&models.Post{
		ID: "p1", UserID: "user-1", Status: models.PostStatusFailed, RetryCount: 1,
		ErrorCode: strPtr("TOKEN_EXPIRED"), ErrorMessage: strPtr("Error validating access token: Session has expired"),
	})
	s := newTestPostService(t, posts, newMemVideos(), &fakeEnqueuer{})

	info, err := s.PostInfo(context.Background(), "p1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", info.PostID)
	assert.Equal(t, "TOKEN_EXPIRED", *info.ErrorCode)
	assert.Equal(t, "Instagramの認証が期限切れです。設定から再連携してください。", *info.ErrorMessage)

	_, err = s.PostInfo(context.Background(), "p1", "user-2")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.PostInfo(context.Background(), "nope", "user-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostService_ListClampsPaging(t *testing.T) {
	posts := newMemPosts(
		&models.Post{ID: "p1", UserID: "user-1", Status: models.PostStatusPublished},
		&models.Post{ID: "p2", UserID: "user-1", Status: models.PostStatusPending, ErrorCode: strPtr("RATE_LIMIT")},
		&models.Post{ID: "p3", UserID: "user-2", Status: models.PostStatusPublished},
	)
	s := newTestPostService(t, posts, newMemVideos(), &fakeEnqueuer{})

	list, err := s.List(context.Background(), "user-1", "", 0, -5)
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, list.Limit)
	assert.Equal(t, 0, list.Offset)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Posts, 2)

	list, err = s.List(context.Background(), "user-1", models.PostStatusPending, 1000, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, list.Limit)
	require.Len(t, list.Posts, 1)
	assert.Equal(t, "p2", list.Posts[0].ID)
	assert.Equal(t, "Instagramの投稿制限に達しました。しばらく時間をおいて再試行されます。", *list.Posts[0].ErrorMessage)
}
