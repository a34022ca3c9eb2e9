package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/reelflow/internal/models"
)

type VideoRepository interface {
	GetByID(ctx context.Context, id string) (*models.Video, error)
	ListDueForPublish(ctx context.Context, now time.Time, limit int) ([]*models.Video, error)
	MarkPublished(ctx context.Context, id, mediaID string, publishedAt time.Time) error
}

type videoRepository struct {
	db *sqlx.DB
}

func NewVideoRepository(db *sqlx.DB) VideoRepository {
	return &videoRepository{db: db}
}

const videoColumns = `id, user_id, title, caption, video_url, status, scheduled_at, published_at,
	ig_media_id, error_message, created_at, updated_at`

func (r *videoRepository) GetByID(ctx context.Context, id string) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`

	var video models.Video
	err := r.db.GetContext(ctx, &video, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return &video, nil
}

// ListDueForPublish returns completed videos whose schedule has passed, that
// were never published and have no post row yet.
func (r *videoRepository) ListDueForPublish(ctx context.Context, now time.Time, limit int) ([]*models.Video, error) {
	query := `
		SELECT ` + videoColumns + `
		FROM videos v
		WHERE v.status = 'completed'
			AND v.video_url IS NOT NULL AND v.video_url <> ''
			AND v.scheduled_at IS NOT NULL AND v.scheduled_at <= $1
			AND v.published_at IS NULL
			AND NOT EXISTS (SELECT 1 FROM instagram_posts p WHERE p.video_id = v.id)
		ORDER BY v.scheduled_at ASC
		LIMIT $2
	`

	videos := []*models.Video{}
	err := r.db.SelectContext(ctx, &videos, query, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return videos, nil
}

func (r *videoRepository) MarkPublished(ctx context.Context, id, mediaID string, publishedAt time.Time) error {
	query := `
		UPDATE videos
		SET published_at = $2, ig_media_id = $3, error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, publishedAt, mediaID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
