package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	config "github.com/maheshrc27/reelflow/configs"
	"github.com/maheshrc27/reelflow/internal/graph"
	"github.com/maheshrc27/reelflow/internal/igerror"
	"github.com/maheshrc27/reelflow/internal/metrics"
	"github.com/maheshrc27/reelflow/internal/models"
	"github.com/maheshrc27/reelflow/internal/repository"
	"github.com/maheshrc27/reelflow/internal/service"
	"github.com/maheshrc27/reelflow/internal/transfer"
)

var ErrRunInProgress = errors.New("a scheduler run is already in progress")

const (
	runScheduled = "scheduled"
	runRetry     = "retry"
	runManual    = "manual"

	lockName = "publish-scheduler"
)

// Publisher runs one end-to-end publish attempt against Instagram.
type Publisher interface {
	PublishReel(ctx context.Context, in graph.PublishInput) (graph.PublishResult, error)
}

// PublishScheduler finds due work and drives it through the publish
// sequence and the post lifecycle, one item at a time.
type PublishScheduler struct {
	vr     repository.VideoRepository
	pr     repository.PostRepository
	cs     service.CredentialService
	as     service.AssetService
	lc     service.LifecycleService
	pub    Publisher
	policy config.Policy
	retry  igerror.Policy
	locker RunLocker
	logger *slog.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewPublishScheduler wires the orchestrator. locker may be nil, in which
// case runs are only serialised within this process.
func NewPublishScheduler(
	vr repository.VideoRepository,
	pr repository.PostRepository,
	cs service.CredentialService,
	as service.AssetService,
	lc service.LifecycleService,
	pub Publisher,
	policy config.Policy,
	locker RunLocker,
	logger *slog.Logger) *PublishScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PublishScheduler{
		vr:     vr,
		pr:     pr,
		cs:     cs,
		as:     as,
		lc:     lc,
		pub:    pub,
		policy: policy,
		retry:  igerror.NewPolicy(policy.BaseDelays, policy.MaxRetryDelay),
		locker: locker,
		logger: logger,
		now:    time.Now,
	}
}

// PublishScheduledPosts and RetryFailedPosts are the cron entry points.
func (s *PublishScheduler) PublishScheduledPosts() { s.tick(runScheduled, s.RunScheduled) }

func (s *PublishScheduler) RetryFailedPosts() { s.tick(runRetry, s.RunRetries) }

func (s *PublishScheduler) tick(run string, fn func(context.Context) (*transfer.RunReport, error)) {
	_, err := fn(context.Background())
	if errors.Is(err, ErrRunInProgress) {
		s.logger.Info("previous run still active, skipping tick", "run", run)
	}
}

// RunScheduled publishes videos whose scheduled time has passed. A failure to
// select work is returned; per-item failures are only reported.
func (s *PublishScheduler) RunScheduled(ctx context.Context) (*transfer.RunReport, error) {
	return s.exclusive(ctx, runScheduled, func() (*transfer.RunReport, error) {
		videos, err := s.vr.ListDueForPublish(ctx, s.now(), s.policy.ScheduledBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to select scheduled videos: %w", err)
		}
		if len(videos) == 0 {
			return &transfer.RunReport{Message: "No videos to publish", Results: []*transfer.ItemResult{}}, nil
		}

		report := &transfer.RunReport{Message: "Scheduled publish completed", Results: make([]*transfer.ItemResult, 0, len(videos))}
		for _, video := range videos {
			if ctx.Err() != nil {
				s.logger.Warn("scheduled run interrupted", "remaining", len(videos)-report.Processed)
				break
			}
			res := s.publishNew(ctx, video)
			s.record(runScheduled, report, res)
		}
		return report, nil
	})
}

// RunRetries re-attempts pending posts whose backoff has elapsed.
func (s *PublishScheduler) RunRetries(ctx context.Context) (*transfer.RunReport, error) {
	return s.exclusive(ctx, runRetry, func() (*transfer.RunReport, error) {
		posts, err := s.pr.ListRetryable(ctx, s.policy.RetryBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to select posts to retry: %w", err)
		}
		if len(posts) == 0 {
			return &transfer.RunReport{Message: "No posts to retry", Results: []*transfer.ItemResult{}}, nil
		}

		report := &transfer.RunReport{Message: "Retry completed", Results: make([]*transfer.ItemResult, 0, len(posts))}
		for _, post := range posts {
			if ctx.Err() != nil {
				s.logger.Warn("retry run interrupted", "remaining", len(posts)-report.Processed)
				break
			}
			res := s.retryPost(ctx, post)
			s.record(runRetry, report, res)
		}
		return report, nil
	})
}

// PublishVideo handles a manual publish request. It waits for any running
// pass to finish rather than failing.
func (s *PublishScheduler) PublishVideo(ctx context.Context, videoID string) (*transfer.ItemResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	video, err := s.vr.GetByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		res := skipped(videoID, "", "Video not found")
		metrics.SchedulerItems.WithLabelValues(runManual, res.Status).Inc()
		return res, nil
	}

	active, err := s.pr.HasActiveForVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	var res *transfer.ItemResult
	if active || video.PublishedAt != nil {
		res = skipped(videoID, "", "Already published or in progress")
	} else {
		res = s.publishNew(ctx, video)
	}
	metrics.SchedulerItems.WithLabelValues(runManual, res.Status).Inc()
	return res, nil
}

func (s *PublishScheduler) exclusive(ctx context.Context, run string, fn func() (*transfer.RunReport, error)) (*transfer.RunReport, error) {
	if !s.mu.TryLock() {
		metrics.SchedulerRuns.WithLabelValues(run, "busy").Inc()
		return nil, ErrRunInProgress
	}
	defer s.mu.Unlock()

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, lockName, s.policy.RunLockTTL)
		if err != nil {
			metrics.SchedulerRuns.WithLabelValues(run, "error").Inc()
			return nil, err
		}
		if !ok {
			metrics.SchedulerRuns.WithLabelValues(run, "busy").Inc()
			return nil, ErrRunInProgress
		}
		defer release()
	}

	report, err := fn()
	if err != nil {
		s.logger.Error("scheduler run failed", "run", run, "error", err)
		metrics.SchedulerRuns.WithLabelValues(run, "error").Inc()
		return nil, err
	}

	s.logger.Info("scheduler run completed", "run", run, "processed", report.Processed)
	metrics.SchedulerRuns.WithLabelValues(run, "ok").Inc()
	return report, nil
}

func (s *PublishScheduler) record(run string, report *transfer.RunReport, res *transfer.ItemResult) {
	report.Results = append(report.Results, res)
	report.Processed++
	metrics.SchedulerItems.WithLabelValues(run, res.Status).Inc()
}

func (s *PublishScheduler) publishNew(ctx context.Context, video *models.Video) *transfer.ItemResult {
	if video.URL() == "" {
		return skipped(video.ID, "", "No video URL")
	}

	cred, err := s.cs.Get(ctx, video.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNoCredential) {
			return skipped(video.ID, "", "No Instagram connection")
		}
		return &transfer.ItemResult{VideoID: video.ID, Status: transfer.ItemError, Reason: err.Error()}
	}

	post, err := s.lc.Begin(ctx, video, s.policy.MaxRetries)
	if errors.Is(err, repository.ErrPostExists) {
		return skipped(video.ID, "", "Already published or in progress")
	}
	if err != nil {
		return &transfer.ItemResult{VideoID: video.ID, Status: transfer.ItemError, Reason: err.Error()}
	}

	return s.attempt(ctx, post, video, cred)
}

func (s *PublishScheduler) retryPost(ctx context.Context, post *models.Post) *transfer.ItemResult {
	code := igerror.CodeUnknownError
	if post.ErrorCode != nil {
		if c, ok := igerror.ParseCode(*post.ErrorCode); ok {
			code = c
		}
	}

	next := s.retry.NextAttempt(code, post.RetryCount, post.UpdatedAt)
	if s.now().Before(next) {
		return &transfer.ItemResult{
			VideoID:    post.VideoID,
			PostID:     post.ID,
			Status:     transfer.ItemWaiting,
			ErrorCode:  string(code),
			RetryCount: post.RetryCount,
			NextRetry:  &next,
		}
	}

	video, err := s.vr.GetByID(ctx, post.VideoID)
	if err != nil {
		return &transfer.ItemResult{VideoID: post.VideoID, PostID: post.ID, Status: transfer.ItemError, Reason: err.Error()}
	}
	if video == nil {
		return skipped(post.VideoID, post.ID, "Video not found")
	}
	if video.URL() == "" {
		return skipped(video.ID, post.ID, "No video URL")
	}

	cred, err := s.cs.Get(ctx, post.UserID)
	if err != nil {
		if errors.Is(err, service.ErrNoCredential) {
			return skipped(video.ID, post.ID, "No credentials")
		}
		return &transfer.ItemResult{VideoID: video.ID, PostID: post.ID, Status: transfer.ItemError, Reason: err.Error()}
	}

	ok, err := s.lc.Resume(ctx, post)
	if err != nil {
		return &transfer.ItemResult{VideoID: video.ID, PostID: post.ID, Status: transfer.ItemError, Reason: err.Error()}
	}
	if !ok {
		return skipped(video.ID, post.ID, "Claimed by another run")
	}

	return s.attempt(ctx, post, video, cred)
}

// attempt runs one publish attempt to completion. Cancellation of ctx does
// not interrupt it once started.
func (s *PublishScheduler) attempt(ctx context.Context, post *models.Post, video *models.Video, cred *service.Credential) (res *transfer.ItemResult) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()
	res = &transfer.ItemResult{VideoID: video.ID, PostID: post.ID}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("publish attempt panicked", "post_id", post.ID, "video_id", video.ID, "panic", r)
			if err := s.lc.Crashed(ctx, post, video.Title, r); err != nil {
				s.logger.Error("failed to record crashed attempt", "post_id", post.ID, "error", err)
			}
			res = &transfer.ItemResult{
				VideoID:    video.ID,
				PostID:     post.ID,
				Status:     transfer.ItemError,
				Reason:     fmt.Sprint(r),
				ErrorCode:  string(igerror.CodeUnknownError),
				RetryCount: post.RetryCount,
			}
		}
		metrics.PublishDuration.WithLabelValues(res.Status).Observe(time.Since(start).Seconds())
	}()

	videoURL, err := s.as.Prepare(ctx, video.URL())
	if err != nil {
		return s.fail(ctx, res, post, video, "", err)
	}

	result, err := s.pub.PublishReel(ctx, graph.PublishInput{
		AccountID:   cred.AccountID,
		AccessToken: cred.AccessToken,
		VideoURL:    videoURL,
		Caption:     post.Caption,
		OnContainer: func(ctx context.Context, containerID string) {
			if err := s.lc.ContainerCreated(ctx, post, containerID); err != nil {
				s.logger.Warn("failed to record container", "post_id", post.ID, "container_id", containerID, "error", err)
			}
		},
	})
	if err != nil {
		return s.fail(ctx, res, post, video, result.ContainerID, err)
	}

	if err := s.lc.Published(ctx, post, video.Title, result.MediaID, result.Permalink); err != nil {
		s.logger.Error("failed to record published post", "post_id", post.ID, "media_id", result.MediaID, "error", err)
		res.Status = transfer.ItemError
		res.Reason = err.Error()
		res.MediaID = result.MediaID
		return res
	}

	s.logger.Info("instagram reel published", "post_id", post.ID, "video_id", video.ID, "media_id", result.MediaID)
	res.Status = transfer.ItemSuccess
	res.MediaID = result.MediaID
	res.Permalink = result.Permalink
	res.RetryCount = post.RetryCount
	return res
}

func (s *PublishScheduler) fail(ctx context.Context, res *transfer.ItemResult, post *models.Post, video *models.Video, containerID string, cause error) *transfer.ItemResult {
	outcome, err := s.lc.Failed(ctx, post, video.Title, containerID, cause)
	if err != nil {
		s.logger.Error("failed to record failed attempt", "post_id", post.ID, "cause", cause, "error", err)
		res.Status = transfer.ItemError
		res.Reason = err.Error()
		return res
	}

	s.logger.Warn("instagram publish failed",
		"post_id", post.ID,
		"video_id", video.ID,
		"code", outcome.Classification.Code,
		"retry_count", outcome.RetryCount,
		"will_retry", outcome.WillRetry,
		"error", cause)

	res.Status = transfer.ItemFailed
	if outcome.WillRetry {
		res.Status = transfer.ItemPending
	}
	res.Reason = outcome.Classification.Message
	res.ErrorCode = string(outcome.Classification.Code)
	res.RetryCount = outcome.RetryCount
	res.WillRetry = outcome.WillRetry
	res.NextRetry = outcome.NextRetry
	return res
}

func skipped(videoID, postID, reason string) *transfer.ItemResult {
	return &transfer.ItemResult{VideoID: videoID, PostID: postID, Status: transfer.ItemSkipped, Reason: reason}
}
