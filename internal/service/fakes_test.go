package service

import (
	"context"
	"sync"
	"time"

	"github.com/maheshrc27/reelflow/internal/models"
	"github.com/maheshrc27/reelflow/internal/repository"
	"github.com/stretchr/testify/mock"
)

// memPosts mirrors the guarantees of the SQL post repository.
type memPosts struct {
	mu      sync.Mutex
	posts   map[string]*models.Post
	updates int
}

func newMemPosts(posts ...*models.Post) *memPosts {
	m := &memPosts{posts: map[string]*models.Post{}}
	for _, p := range posts {
		cp := *p
		m.posts[p.ID] = &cp
	}
	return m
}

func (m *memPosts) get(id string) *models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (m *memPosts) Create(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *post
	m.posts[post.ID] = &cp
	return nil
}

func (m *memPosts) GetByID(_ context.Context, id string) (*models.Post, error) {
	return m.get(id), nil
}

func (m *memPosts) GetByIDForUser(_ context.Context, id, userID string) (*models.Post, error) {
	p := m.get(id)
	if p == nil || p.UserID != userID {
		return nil, nil
	}
	return p, nil
}

func (m *memPosts) ListByUser(_ context.Context, userID, status string, limit, offset int) ([]*models.Post, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if p.UserID == userID && (status == "" || p.Status == status) {
			cp := *p
			out = append(out, &cp)
		}
	}
	total := len(out)
	if offset >= len(out) {
		return []*models.Post{}, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memPosts) ListRetryable(_ context.Context, limit int) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Post
	for _, p := range m.posts {
		if p.Status == models.PostStatusPending && p.RetryCount > 0 && p.RetryCount < p.MaxRetries {
			cp := *p
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPosts) HasActiveForVideo(_ context.Context, videoID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.posts {
		if p.VideoID == videoID && p.Status != models.PostStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (m *memPosts) Claim(_ context.Context, id string, retryCount int, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok || p.Status != models.PostStatusPending || p.RetryCount != retryCount {
		return false, nil
	}
	p.Status = models.PostStatusUploading
	p.UpdatedAt = now
	return true, nil
}

func (m *memPosts) Update(_ context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[post.ID]
	if !ok || models.IsTerminal(p.Status) {
		return repository.ErrPostTerminal
	}
	retryCount := p.RetryCount
	if post.RetryCount > retryCount {
		retryCount = post.RetryCount
	}
	cp := *post
	cp.RetryCount = retryCount
	m.posts[post.ID] = &cp
	m.updates++
	return nil
}

type memVideos struct {
	mu        sync.Mutex
	videos    map[string]*models.Video
	published map[string]string
}

func newMemVideos(videos ...*models.Video) *memVideos {
	m := &memVideos{videos: map[string]*models.Video{}, published: map[string]string{}}
	for _, v := range videos {
		m.videos[v.ID] = v
	}
	return m
}

func (m *memVideos) GetByID(_ context.Context, id string) (*models.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videos[id], nil
}

func (m *memVideos) ListDueForPublish(_ context.Context, now time.Time, limit int) ([]*models.Video, error) {
	return nil, nil
}

func (m *memVideos) MarkPublished(_ context.Context, id, mediaID string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[id] = mediaID
	if v, ok := m.videos[id]; ok {
		v.PublishedAt = &publishedAt
		v.MediaID = &mediaID
	}
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyPublished(ctx context.Context, userID, videoID, title string) {
	m.Called(ctx, userID, videoID, title)
}

func (m *mockNotifier) NotifyFailed(ctx context.Context, userID, videoID, title, userMessage string) {
	m.Called(ctx, userID, videoID, title, userMessage)
}

func (m *mockNotifier) NotifyTokenExpiring(ctx context.Context, userID string, daysRemaining int) {
	m.Called(ctx, userID, daysRemaining)
}

func strPtr(s string) *string { return &s }
