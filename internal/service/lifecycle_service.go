package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/maheshrc27/reelflow/internal/igerror"
	"github.com/maheshrc27/reelflow/internal/metrics"
	"github.com/maheshrc27/reelflow/internal/models"
	"github.com/maheshrc27/reelflow/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrTerminalState is returned for any transition out of published or failed.
var ErrTerminalState = errors.New("post is in a terminal state")

// FailureOutcome describes where a failed attempt left the post.
type FailureOutcome struct {
	Classification igerror.Classification
	RetryCount     int
	WillRetry      bool
	NextRetry      *time.Time
}

// LifecycleService owns every status change of an Instagram post:
//
//	uploading → processing → published
//	uploading → processing → pending | failed
//	pending → uploading (retry)
//
// published and failed are terminal and retry_count only ever grows.
type LifecycleService interface {
	Begin(ctx context.Context, video *models.Video, maxRetries int) (*models.Post, error)
	Resume(ctx context.Context, post *models.Post) (bool, error)
	ContainerCreated(ctx context.Context, post *models.Post, containerID string) error
	Published(ctx context.Context, post *models.Post, title, mediaID, permalink string) error
	Failed(ctx context.Context, post *models.Post, title, containerID string, cause error) (*FailureOutcome, error)
	Crashed(ctx context.Context, post *models.Post, title string, recovered any) error
}

type lifecycleService struct {
	pr     repository.PostRepository
	vr     repository.VideoRepository
	ns     NotificationService
	policy igerror.Policy
	now    func() time.Time
}

func NewLifecycleService(
	pr repository.PostRepository,
	vr repository.VideoRepository,
	ns NotificationService,
	policy igerror.Policy) LifecycleService {
	return &lifecycleService{
		pr:     pr,
		vr:     vr,
		ns:     ns,
		policy: policy,
		now:    time.Now,
	}
}

// Begin inserts a fresh post for video in uploading.
func (s *lifecycleService) Begin(ctx context.Context, video *models.Video, maxRetries int) (*models.Post, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, err
	}
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	now := s.now()
	post := &models.Post{
		ID:          id,
		VideoID:     video.ID,
		UserID:      video.UserID,
		Caption:     video.CaptionText(),
		Status:      models.PostStatusUploading,
		RetryCount:  0,
		MaxRetries:  maxRetries,
		ScheduledAt: video.ScheduledAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.pr.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post for video %s: %w", video.ID, err)
	}

	metrics.PostTransitions.WithLabelValues(models.PostStatusUploading).Inc()
	return post, nil
}

// Resume claims a pending post for another attempt. It reports false when
// another worker got there first.
func (s *lifecycleService) Resume(ctx context.Context, post *models.Post) (bool, error) {
	if models.IsTerminal(post.Status) {
		return false, fmt.Errorf("%w: post %s is %s", ErrTerminalState, post.ID, post.Status)
	}
	if post.Status != models.PostStatusPending {
		return false, fmt.Errorf("post %s is %s, not pending", post.ID, post.Status)
	}

	now := s.now()
	ok, err := s.pr.Claim(ctx, post.ID, post.RetryCount, now)
	if err != nil || !ok {
		return false, err
	}

	post.Status = models.PostStatusUploading
	post.UpdatedAt = now
	metrics.PostTransitions.WithLabelValues(models.PostStatusUploading).Inc()
	return true, nil
}

func (s *lifecycleService) ContainerCreated(ctx context.Context, post *models.Post, containerID string) error {
	if err := guard(post); err != nil {
		return err
	}

	post.Status = models.PostStatusProcessing
	post.ContainerID = &containerID
	post.UpdatedAt = s.now()

	return s.save(ctx, post)
}

func (s *lifecycleService) Published(ctx context.Context, post *models.Post, title, mediaID, permalink string) error {
	if err := guard(post); err != nil {
		return err
	}
	if mediaID == "" {
		return fmt.Errorf("post %s cannot be published without a media id", post.ID)
	}

	now := s.now()
	post.Status = models.PostStatusPublished
	post.MediaID = &mediaID
	post.Permalink = nil
	if permalink != "" {
		post.Permalink = &permalink
	}
	post.PublishedAt = &now
	post.ErrorCode = nil
	post.ErrorMessage = nil
	post.UpdatedAt = now

	if err := s.save(ctx, post); err != nil {
		return err
	}

	if err := s.vr.MarkPublished(ctx, post.VideoID, mediaID, now); err != nil {
		slog.Warn("failed to mark video published", "video_id", post.VideoID, "post_id", post.ID, "error", err)
	}

	s.ns.NotifyPublished(ctx, post.UserID, post.VideoID, title)
	return nil
}

// Failed classifies cause and moves the post to pending when another attempt
// is allowed, otherwise to failed with a user notification.
func (s *lifecycleService) Failed(ctx context.Context, post *models.Post, title, containerID string, cause error) (*FailureOutcome, error) {
	if err := guard(post); err != nil {
		return nil, err
	}

	c := s.policy.Classify(cause, post.RetryCount)
	retryCount := post.RetryCount + 1
	willRetry := igerror.ShouldRetry(c, retryCount, post.MaxRetries)

	now := s.now()
	code := string(c.Code)
	post.ErrorCode = &code
	post.ErrorMessage = &c.Message
	post.RetryCount = retryCount
	post.UpdatedAt = now
	if containerID != "" && post.ContainerID == nil {
		post.ContainerID = &containerID
	}

	post.Status = models.PostStatusFailed
	if willRetry {
		post.Status = models.PostStatusPending
	}

	if err := s.save(ctx, post); err != nil {
		return nil, err
	}

	metrics.PublishFailures.WithLabelValues(code, strconv.FormatBool(c.Retryable)).Inc()

	outcome := &FailureOutcome{Classification: c, RetryCount: retryCount, WillRetry: willRetry}
	if willRetry {
		next := s.policy.NextAttempt(c.Code, retryCount, now)
		outcome.NextRetry = &next
	} else {
		s.ns.NotifyFailed(ctx, post.UserID, post.VideoID, title, igerror.UserMessage(c.Code))
	}
	return outcome, nil
}

// Crashed records an unexpected panic during an attempt. It is never retried.
func (s *lifecycleService) Crashed(ctx context.Context, post *models.Post, title string, recovered any) error {
	if err := guard(post); err != nil {
		return err
	}

	code := string(igerror.CodeUnknownError)
	message := fmt.Sprintf("unexpected error: %v", recovered)
	post.Status = models.PostStatusFailed
	post.ErrorCode = &code
	post.ErrorMessage = &message
	post.RetryCount++
	post.UpdatedAt = s.now()

	if err := s.save(ctx, post); err != nil {
		return err
	}

	metrics.PublishFailures.WithLabelValues(code, "false").Inc()
	s.ns.NotifyFailed(ctx, post.UserID, post.VideoID, title, igerror.UserMessage(igerror.CodeUnknownError))
	return nil
}

func (s *lifecycleService) save(ctx context.Context, post *models.Post) error {
	if err := s.pr.Update(ctx, post); err != nil {
		if errors.Is(err, repository.ErrPostTerminal) {
			return fmt.Errorf("%w: post %s", ErrTerminalState, post.ID)
		}
		return fmt.Errorf("failed to update post %s: %w", post.ID, err)
	}
	metrics.PostTransitions.WithLabelValues(post.Status).Inc()
	return nil
}

func guard(post *models.Post) error {
	if models.IsTerminal(post.Status) {
		return fmt.Errorf("%w: post %s is %s", ErrTerminalState, post.ID, post.Status)
	}
	return nil
}
