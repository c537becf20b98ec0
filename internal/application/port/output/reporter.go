package output

import (
	"context"

	"task-agent/internal/domain/entity"
)

// StepReporter receives every step a drive loop completes.
type StepReporter interface {
	ShowTask(ctx context.Context, task *entity.Task)
	ShowStep(ctx context.Context, iteration, maxSteps int, step *entity.Step)
	ShowFinished(ctx context.Context, step *entity.Step)
}
