package input

import (
	"context"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
)

type DriveOptions struct {
	// MaxSteps bounds the number of cycles; zero means unbounded.
	MaxSteps int
	Reporter output.StepReporter
}

type DriveResult struct {
	Task     *entity.Task
	LastStep *entity.Step
	Cycles   int
}

// TaskController is the only surface a host process needs.
type TaskController interface {
	Create(ctx context.Context, req entity.TaskRequest) (*entity.Task, error)
	Step(ctx context.Context, taskID string, req entity.StepRequest) (*entity.Step, error)
	Drive(ctx context.Context, taskID string, opts DriveOptions) (*DriveResult, error)
}

// StepExecutor runs exactly one decision/action cycle.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, taskID string, req entity.StepRequest) (*entity.Step, error)
}
