package output

import (
	"context"

	"task-agent/internal/domain/entity"
)

// TaskStore persists tasks, their steps and artifacts. Lookups of missing
// records return entity.ErrNotFound.
type TaskStore interface {
	CreateTask(ctx context.Context, req entity.TaskRequest) (*entity.Task, error)
	GetTask(ctx context.Context, taskID string) (*entity.Task, error)
	ListTasks(ctx context.Context, page, perPage int) ([]entity.Task, entity.Pagination, error)

	CreateStep(ctx context.Context, taskID string, req entity.StepRequest, isLast bool, additionalInput *entity.Continuation) (*entity.Step, error)
	GetStep(ctx context.Context, taskID, stepID string) (*entity.Step, error)
	UpdateStep(ctx context.Context, taskID, stepID string, upd entity.StepUpdate) (*entity.Step, error)
	ListSteps(ctx context.Context, taskID string, page, perPage int) ([]entity.Step, entity.Pagination, error)

	CreateArtifact(ctx context.Context, artifact entity.Artifact) (*entity.Artifact, error)
	GetArtifact(ctx context.Context, taskID, artifactID string) (*entity.Artifact, error)
	GetArtifactByFileName(ctx context.Context, taskID, fileName string) (*entity.Artifact, error)
	UpdateArtifact(ctx context.Context, taskID, artifactID, stepID string) (*entity.Artifact, error)
	ListArtifacts(ctx context.Context, taskID string, page, perPage int) ([]entity.Artifact, entity.Pagination, error)

	Close() error
}
