package job

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/reelflow/internal/graph"
	"github.com/maheshrc27/reelflow/internal/models"
	"github.com/maheshrc27/reelflow/internal/repository"
	"github.com/maheshrc27/reelflow/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

type store struct {
	mu     sync.Mutex
	order  []string
	posts  map[string]*models.Post
	videos map[string]*models.Video

	selectErr  error
	dueLimit   int
	retryLimit int

	// beforeCreate runs inside Create with the lock held, to stand in for a
	// concurrent writer.
	beforeCreate func(post *models.Post)
}

func newStore() *store {
	return &store{posts: map[string]*models.Post{}, videos: map[string]*models.Video{}}
}

func (s *store) addVideo(v *models.Video) { s.videos[v.ID] = v }

func (s *store) addPost(p *models.Post) {
	cp := *p
	s.posts[p.ID] = &cp
	s.order = append(s.order, p.ID)
}

func (s *store) post(id string) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.posts[id]
	return &cp
}

func (s *store) postsFor(videoID string) []*models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Post
	for _, id := range s.order {
		if p := s.posts[id]; p.VideoID == videoID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out
}

// postRepo and videoRepo share the store so the due query can see posts.
type postRepo struct{ *store }
type videoRepo struct{ *store }

func (r postRepo) Create(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.beforeCreate != nil {
		r.beforeCreate(post)
	}
	for _, p := range r.posts {
		if p.VideoID == post.VideoID && p.Status != models.PostStatusFailed {
			return repository.ErrPostExists
		}
	}
	r.addPost(post)
	return nil
}

func (r postRepo) GetByID(_ context.Context, id string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r postRepo) GetByIDForUser(ctx context.Context, id, userID string) (*models.Post, error) {
	p, _ := r.GetByID(ctx, id)
	if p == nil || p.UserID != userID {
		return nil, nil
	}
	return p, nil
}

func (r postRepo) ListByUser(context.Context, string, string, int, int) ([]*models.Post, int, error) {
	return nil, 0, errors.New("not used")
}

func (r postRepo) ListRetryable(_ context.Context, limit int) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryLimit = limit
	if r.selectErr != nil {
		return nil, r.selectErr
	}
	var out []*models.Post
	for _, id := range r.order {
		p := r.posts[id]
		if p.Status == models.PostStatusPending && p.RetryCount > 0 && p.RetryCount < p.MaxRetries {
			cp := *p
			out = append(out, &cp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r postRepo) HasActiveForVideo(_ context.Context, videoID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.posts {
		if p.VideoID == videoID && p.Status != models.PostStatusFailed {
			return true, nil
		}
	}
	return false, nil
}

func (r postRepo) Claim(_ context.Context, id string, retryCount int, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[id]
	if !ok || p.Status != models.PostStatusPending || p.RetryCount != retryCount {
		return false, nil
	}
	p.Status = models.PostStatusUploading
	p.UpdatedAt = now
	return true, nil
}

func (r postRepo) Update(_ context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[post.ID]
	if !ok || models.IsTerminal(p.Status) {
		return repository.ErrPostTerminal
	}
	cp := *post
	if p.RetryCount > cp.RetryCount {
		cp.RetryCount = p.RetryCount
	}
	r.posts[post.ID] = &cp
	return nil
}

func (r videoRepo) GetByID(_ context.Context, id string) (*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.videos[id], nil
}

func (r videoRepo) ListDueForPublish(_ context.Context, now time.Time, limit int) ([]*models.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dueLimit = limit
	if r.selectErr != nil {
		return nil, r.selectErr
	}

	hasPost := map[string]bool{}
	for _, p := range r.posts {
		hasPost[p.VideoID] = true
	}

	var out []*models.Video
	for _, v := range sortedVideos(r.videos) {
		if v.Status != models.VideoStatusCompleted || v.URL() == "" || v.ScheduledAt == nil ||
			v.ScheduledAt.After(now) || v.PublishedAt != nil || hasPost[v.ID] {
			continue
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r videoRepo) MarkPublished(_ context.Context, id, mediaID string, publishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.videos[id]; ok {
		v.PublishedAt = &publishedAt
		v.MediaID = &mediaID
	}
	return nil
}

func sortedVideos(m map[string]*models.Video) []*models.Video {
	out := make([]*models.Video, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ScheduledAt.Before(*out[j-1].ScheduledAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

type fakeCredentials struct {
	mu     sync.Mutex
	creds  map[string]*service.Credential
	stored map[string]string
	err    error
}

func (f *fakeCredentials) Get(_ context.Context, userID string) (*service.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.creds[userID]
	if !ok {
		return nil, service.ErrNoCredential
	}
	return c, nil
}

func (f *fakeCredentials) Expiring(_ context.Context, before time.Time) ([]*service.Credential, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*service.Credential
	for _, c := range f.creds {
		if c.TokenExpiresAt == nil || !c.TokenExpiresAt.After(before) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCredentials) StoreToken(_ context.Context, id, accessToken string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = map[string]string{}
	}
	f.stored[id] = accessToken
	return nil
}

type notice struct {
	kind    string
	userID  string
	message string
	days    int
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (f *fakeNotifier) NotifyPublished(_ context.Context, userID, videoID, title string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{kind: models.NotificationVideoPublished, userID: userID, message: title})
}

func (f *fakeNotifier) NotifyFailed(_ context.Context, userID, videoID, title, userMessage string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{kind: models.NotificationVideoFailed, userID: userID, message: userMessage})
}

func (f *fakeNotifier) NotifyTokenExpiring(_ context.Context, userID string, daysRemaining int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{kind: models.NotificationTokenExpiring, userID: userID, days: daysRemaining})
}

func (f *fakeNotifier) all() []notice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]notice(nil), f.notices...)
}

// fakePublisher replays scripted attempts in order.
type fakePublisher struct {
	mu       sync.Mutex
	attempts []func(ctx context.Context, in graph.PublishInput) (graph.PublishResult, error)
	inputs   []graph.PublishInput
}

func (f *fakePublisher) then(fn func(ctx context.Context, in graph.PublishInput) (graph.PublishResult, error)) *fakePublisher {
	f.attempts = append(f.attempts, fn)
	return f
}

func (f *fakePublisher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func (f *fakePublisher) PublishReel(ctx context.Context, in graph.PublishInput) (graph.PublishResult, error) {
	f.mu.Lock()
	n := len(f.inputs)
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()

	if n >= len(f.attempts) {
		return graph.PublishResult{}, errors.New("unexpected publish attempt")
	}
	return f.attempts[n](ctx, in)
}

func succeed(mediaID, permalink string) func(context.Context, graph.PublishInput) (graph.PublishResult, error) {
	return func(ctx context.Context, in graph.PublishInput) (graph.PublishResult, error) {
		in.OnContainer(ctx, "cont-"+mediaID)
		return graph.PublishResult{ContainerID: "cont-" + mediaID, MediaID: mediaID, Permalink: permalink}, nil
	}
}

func failWith(containerID string, err error) func(context.Context, graph.PublishInput) (graph.PublishResult, error) {
	return func(ctx context.Context, in graph.PublishInput) (graph.PublishResult, error) {
		if containerID != "" {
			in.OnContainer(ctx, containerID)
		}
		return graph.PublishResult{ContainerID: containerID}, err
	}
}

type fakeLocker struct {
	held     bool
	acquired int
	released int
}

func (f *fakeLocker) Acquire(_ context.Context, _ string, _ time.Duration) (func(), bool, error) {
	if f.held {
		return nil, false, nil
	}
	f.acquired++
	return func() { f.released++ }, true, nil
}
