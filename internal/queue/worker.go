package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

func (q *Queue) HandlePublishVideoTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishVideoPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid publish payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.VideoID == "" {
		return fmt.Errorf("publish payload without video id: %w", asynq.SkipRetry)
	}

	res, err := q.p.PublishVideo(ctx, payload.VideoID)
	if err != nil {
		q.logger.Error("manual publish failed", "video_id", payload.VideoID, "error", err)
		return err
	}

	// the outcome is already on the post row; the task itself succeeded
	q.logger.Info("manual publish finished",
		"video_id", payload.VideoID,
		"post_id", res.PostID,
		"status", res.Status,
		"error_code", res.ErrorCode)
	return nil
}

// Register mounts the queue's handlers on mux.
func (q *Queue) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskTypePublishVideo, q.HandlePublishVideoTask)
}
