package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/maheshrc27/reelflow/internal/igerror"
	"github.com/maheshrc27/reelflow/internal/models"
	"github.com/maheshrc27/reelflow/internal/repository"
	"github.com/maheshrc27/reelflow/internal/transfer"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidVideoID    = errors.New("invalid video id")
	ErrNotReady          = errors.New("video is not ready to publish")
	ErrAlreadyPublishing = errors.New("video is already published or being published")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PublishEnqueuer hands a manual publish request to the background worker.
// Implementations return ErrAlreadyPublishing for a duplicate request.
type PublishEnqueuer interface {
	EnqueuePublish(ctx context.Context, videoID string) error
}

type PostService interface {
	List(ctx context.Context, userID, status string, limit, offset int) (*transfer.PostList, error)
	PostInfo(ctx context.Context, postID, userID string) (*transfer.PostStatus, error)
	RequestPublish(ctx context.Context, userID, videoID string) error
}

type postService struct {
	pr repository.PostRepository
	vr repository.VideoRepository
	cs CredentialService
	pq PublishEnqueuer
}

func NewPostService(
	pr repository.PostRepository,
	vr repository.VideoRepository,
	cs CredentialService,
	pq PublishEnqueuer) PostService {
	return &postService{
		pr: pr,
		vr: vr,
		cs: cs,
		pq: pq,
	}
}

func (s *postService) List(ctx context.Context, userID, status string, limit, offset int) (*transfer.PostList, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	posts, total, err := s.pr.ListByUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, err
	}

	list := &transfer.PostList{
		Posts:  make([]*transfer.PostSummary, 0, len(posts)),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}
	for _, p := range posts {
		list.Posts = append(list.Posts, &transfer.PostSummary{
			ID:           p.ID,
			VideoID:      p.VideoID,
			Status:       p.Status,
			MediaID:      p.MediaID,
			Permalink:    p.Permalink,
			Caption:      p.Caption,
			ErrorCode:    p.ErrorCode,
			ErrorMessage: userFacingMessage(p.ErrorCode),
			RetryCount:   p.RetryCount,
			ScheduledAt:  p.ScheduledAt,
			PublishedAt:  p.PublishedAt,
			CreatedAt:    p.CreatedAt,
		})
	}
	return list, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID string) (*transfer.PostStatus, error) {
	post, err := s.pr.GetByIDForUser(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, ErrNotFound
	}

	return &transfer.PostStatus{
		PostID:          post.ID,
		Status:          post.Status,
		InstagramPostID: post.MediaID,
		Permalink:       post.Permalink,
		ErrorCode:       post.ErrorCode,
		ErrorMessage:    userFacingMessage(post.ErrorCode),
		RetryCount:      post.RetryCount,
		PublishedAt:     post.PublishedAt,
		UpdatedAt:       post.UpdatedAt,
	}, nil
}

// RequestPublish validates that the caller's video can be published now and
// queues it.
func (s *postService) RequestPublish(ctx context.Context, userID, videoID string) error {
	if err := uuid.Validate(videoID); err != nil {
		return ErrInvalidVideoID
	}

	video, err := s.vr.GetByID(ctx, videoID)
	if err != nil {
		return err
	}
	if video == nil || video.UserID != userID {
		return ErrNotFound
	}
	if video.Status != models.VideoStatusCompleted || video.URL() == "" {
		return ErrNotReady
	}
	if video.PublishedAt != nil {
		return ErrAlreadyPublishing
	}

	active, err := s.pr.HasActiveForVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if active {
		return ErrAlreadyPublishing
	}

	if _, err := s.cs.Get(ctx, userID); err != nil {
		return err
	}

	if err := s.pq.EnqueuePublish(ctx, videoID); err != nil {
		if errors.Is(err, ErrAlreadyPublishing) {
			return err
		}
		return fmt.Errorf("failed to enqueue publish for video %s: %w", videoID, err)
	}

	slog.Info("instagram publish queued", "video_id", videoID, "user_id", userID)
	return nil
}

func userFacingMessage(code *string) *string {
	if code == nil || *code == "" {
		return nil
	}
	c, ok := igerror.ParseCode(*code)
	if !ok {
		c = igerror.CodeUnknownError
	}
	msg := igerror.UserMessage(c)
	return &msg
}
