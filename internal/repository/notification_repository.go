package repository

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/maheshrc27/reelflow/internal/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, video_id, created_at)
		VALUES (:id, :user_id, :type, :title, :message, :video_id, :created_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, n)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
