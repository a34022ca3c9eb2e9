package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	job "github.com/maheshrc27/reelflow/internal/jobs"
	"github.com/maheshrc27/reelflow/internal/transfer"
)

// SchedulerRunner runs one orchestrator pass.
type SchedulerRunner interface {
	RunScheduled(ctx context.Context) (*transfer.RunReport, error)
	RunRetries(ctx context.Context) (*transfer.RunReport, error)
}

type CronHandler struct {
	s SchedulerRunner
}

func NewCronHandler(s SchedulerRunner) *CronHandler {
	return &CronHandler{s: s}
}

func (h *CronHandler) PublishScheduled(c *fiber.Ctx) error {
	return h.run(c, h.s.RunScheduled)
}

func (h *CronHandler) RetryFailed(c *fiber.Ctx) error {
	return h.run(c, h.s.RunRetries)
}

func (h *CronHandler) run(c *fiber.Ctx, fn func(context.Context) (*transfer.RunReport, error)) error {
	report, err := fn(c.Context())
	if err != nil {
		if errors.Is(err, job.ErrRunInProgress) {
			return errorJSON(c, fiber.StatusConflict, err.Error())
		}
		return errorJSON(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusOK).JSON(report)
}
