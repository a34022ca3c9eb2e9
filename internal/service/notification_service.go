package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maheshrc27/reelflow/internal/models"
	"github.com/maheshrc27/reelflow/internal/repository"
)

// NotificationService records in-app notifications. Every method is
// fire-and-forget: a storage failure is logged and never returned, so it
// cannot undo the state change that triggered it.
type NotificationService interface {
	NotifyPublished(ctx context.Context, userID, videoID, title string)
	NotifyFailed(ctx context.Context, userID, videoID, title, userMessage string)
	NotifyTokenExpiring(ctx context.Context, userID string, daysRemaining int)
}

type notificationService struct {
	nr  repository.NotificationRepository
	now func() time.Time
}

func NewNotificationService(nr repository.NotificationRepository) NotificationService {
	return &notificationService{nr: nr, now: time.Now}
}

func (s *notificationService) NotifyPublished(ctx context.Context, userID, videoID, title string) {
	s.create(ctx, userID, models.NotificationVideoPublished,
		"Instagram投稿完了",
		fmt.Sprintf("「%s」がInstagramに投稿されました", title),
		&videoID)
}

func (s *notificationService) NotifyFailed(ctx context.Context, userID, videoID, title, userMessage string) {
	s.create(ctx, userID, models.NotificationVideoFailed, "Instagram投稿失敗", userMessage, &videoID)
}

func (s *notificationService) NotifyTokenExpiring(ctx context.Context, userID string, daysRemaining int) {
	message := fmt.Sprintf("Instagramの連携が%d日後に切れます。設定から再連携してください。", daysRemaining)
	if daysRemaining <= 0 {
		message = "Instagramの連携が期限切れです。設定から再連携してください。"
	}
	s.create(ctx, userID, models.NotificationTokenExpiring, "Instagramトークン期限警告", message, nil)
}

func (s *notificationService) create(ctx context.Context, userID, kind, title, message string, videoID *string) {
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      kind,
		Title:     title,
		Message:   message,
		VideoID:   videoID,
		CreatedAt: s.now(),
	}

	if err := s.nr.Create(ctx, n); err != nil {
		slog.Warn("failed to create notification", "user_id", userID, "type", kind, "error", err)
	}
}
