package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/maheshrc27/reelflow/internal/models"
)

// ErrPostTerminal is returned when an update targets a post that is already
// published or failed.
var ErrPostTerminal = errors.New("post is already in a terminal state")

// ErrPostExists is returned by Create when the video already has a post that
// is not failed.
var ErrPostExists = errors.New("video already has an active post")

const uniqueViolation = "23505"

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*models.Post, error)
	ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]*models.Post, int, error)
	ListRetryable(ctx context.Context, limit int) ([]*models.Post, error)
	HasActiveForVideo(ctx context.Context, videoID string) (bool, error)
	Claim(ctx context.Context, id string, retryCount int, now time.Time) (bool, error)
	Update(ctx context.Context, post *models.Post) error
}

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, video_id, user_id, caption, status, ig_container_id, ig_media_id, ig_permalink,
	error_code, error_message, retry_count, max_retries, scheduled_at, published_at, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO instagram_posts (id, video_id, user_id, caption, status, retry_count, max_retries, scheduled_at, created_at, updated_at)
		VALUES (:id, :video_id, :user_id, :caption, :status, :retry_count, :max_retries, :scheduled_at, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, post)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrPostExists
		}
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM instagram_posts WHERE id = $1`

	var post models.Post
	err := r.db.GetContext(ctx, &post, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM instagram_posts WHERE id = $1 AND user_id = $2`

	var post models.Post
	err := r.db.GetContext(ctx, &post, query, id, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &post, nil
}

// ListByUser returns a page of the user's posts, newest first, and the total
// number of posts matching the filter. An empty status matches every status.
func (r *postRepository) ListByUser(ctx context.Context, userID, status string, limit, offset int) ([]*models.Post, int, error) {
	where := `WHERE user_id = $1 AND ($2 = '' OR status = $2)`

	var total int
	err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM instagram_posts `+where, userID, status)
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	query := `SELECT ` + postColumns + ` FROM instagram_posts ` + where + ` ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	posts := []*models.Post{}
	err = r.db.SelectContext(ctx, &posts, query, userID, status, limit, offset)
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}
	return posts, total, nil
}

// ListRetryable selects pending posts that have failed at least once and
// still have attempts left, least recently touched first.
func (r *postRepository) ListRetryable(ctx context.Context, limit int) ([]*models.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM instagram_posts
		WHERE status = 'pending' AND retry_count > 0 AND retry_count < max_retries
		ORDER BY updated_at ASC
		LIMIT $1
	`

	posts := []*models.Post{}
	err := r.db.SelectContext(ctx, &posts, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// HasActiveForVideo reports whether the video has a post that is published
// or still being worked on.
func (r *postRepository) HasActiveForVideo(ctx context.Context, videoID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM instagram_posts WHERE video_id = $1 AND status <> 'failed')`

	var exists bool
	err := r.db.GetContext(ctx, &exists, query, videoID)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return exists, nil
}

// Claim moves a pending post back to uploading, provided nobody else has
// touched it since it was read with retryCount.
func (r *postRepository) Claim(ctx context.Context, id string, retryCount int, now time.Time) (bool, error) {
	query := `
		UPDATE instagram_posts
		SET status = 'uploading', updated_at = $3
		WHERE id = $1 AND status = 'pending' AND retry_count = $2
	`

	res, err := r.db.ExecContext(ctx, query, id, retryCount, now)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Update writes the mutable columns. Terminal rows are never touched and
// retry_count never goes down.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	query := `
		UPDATE instagram_posts
		SET status = :status,
			ig_container_id = :ig_container_id,
			ig_media_id = :ig_media_id,
			ig_permalink = :ig_permalink,
			error_code = :error_code,
			error_message = :error_message,
			retry_count = GREATEST(retry_count, :retry_count),
			published_at = :published_at,
			updated_at = :updated_at
		WHERE id = :id AND status NOT IN ('published', 'failed')
	`

	res, err := r.db.NamedExecContext(ctx, query, post)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPostTerminal
	}
	return nil
}
