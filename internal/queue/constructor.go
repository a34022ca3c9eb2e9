package queue

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/reelflow/internal/transfer"
)

const TaskTypePublishVideo = "instagram:publish"

type PublishVideoPayload struct {
	VideoID string `json:"video_id"`
}

// TaskEnqueuer is the part of *asynq.Client the queue uses.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is the part of *asynq.Inspector used to clear a finished
// task that still holds a video's task id.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// VideoPublisher runs one manual publish to completion.
type VideoPublisher interface {
	PublishVideo(ctx context.Context, videoID string) (*transfer.ItemResult, error)
}

type Queue struct {
	client    TaskEnqueuer
	inspector TaskInspector
	p         VideoPublisher
	logger    *slog.Logger
}

func NewQueue(client TaskEnqueuer, inspector TaskInspector, p VideoPublisher, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		client:    client,
		inspector: inspector,
		p:         p,
		logger:    logger,
	}
}
