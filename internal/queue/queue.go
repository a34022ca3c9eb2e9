package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/reelflow/internal/service"
)

const publishQueue = "default"

func taskID(videoID string) string {
	return "publish:" + videoID
}

// EnqueuePublish schedules a manual publish for immediate processing. The
// task id is derived from the video so a second request while the first is
// still pending or active is rejected with service.ErrAlreadyPublishing. A
// task left archived (or retained as completed) by an earlier run does not
// block the video: it is deleted and the publish is enqueued again.
func (q *Queue) EnqueuePublish(ctx context.Context, videoID string) error {
	taskPayload, err := json.Marshal(PublishVideoPayload{VideoID: videoID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(TaskTypePublishVideo, taskPayload)
	id := taskID(videoID)

	info, err := q.enqueue(ctx, task, id)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		var cleared bool
		cleared, err = q.clearFinished(id)
		if err != nil {
			return err
		}
		if !cleared {
			return service.ErrAlreadyPublishing
		}
		info, err = q.enqueue(ctx, task, id)
	}
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return service.ErrAlreadyPublishing
		}
		return fmt.Errorf("failed to enqueue publish task: %w", err)
	}

	q.logger.Info("publish task enqueued", "video_id", videoID, "task_id", info.ID, "queue", info.Queue)
	return nil
}

func (q *Queue) enqueue(ctx context.Context, task *asynq.Task, id string) (*asynq.TaskInfo, error) {
	return q.client.EnqueueContext(ctx, task,
		asynq.TaskID(id),
		asynq.Queue(publishQueue),
		asynq.MaxRetry(0),
	)
}

// clearFinished removes the task holding id when it will never run again.
// It reports whether the id is free for a new task.
func (q *Queue) clearFinished(id string) (bool, error) {
	if q.inspector == nil {
		return false, nil
	}

	info, err := q.inspector.GetTaskInfo(publishQueue, id)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to inspect publish task: %w", err)
	}

	switch info.State {
	case asynq.TaskStateArchived, asynq.TaskStateCompleted:
	default:
		return false, nil
	}

	if err := q.inspector.DeleteTask(publishQueue, id); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
		return false, fmt.Errorf("failed to delete finished publish task: %w", err)
	}
	q.logger.Info("cleared finished publish task", "task_id", id, "state", info.State.String())
	return true, nil
}
