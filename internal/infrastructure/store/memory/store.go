package memory

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"

	"github.com/google/uuid"
)

var _ output.TaskStore = (*Store)(nil)

type taskRecord struct {
	task      entity.Task
	steps     []*entity.Step
	artifacts []*entity.Artifact
}

// Store keeps tasks in memory. Returned values are copies.
type Store struct {
	mu    sync.RWMutex
	order []string
	tasks map[string]*taskRecord
	now   func() time.Time
}

func New() *Store {
	return &Store{
		tasks: make(map[string]*taskRecord),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateTask(_ context.Context, req entity.TaskRequest) (*entity.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := entity.Task{
		ID:              uuid.NewString(),
		Input:           req.Input,
		AdditionalInput: maps.Clone(req.AdditionalInput),
		CreatedAt:       s.now(),
	}
	s.tasks[task.ID] = &taskRecord{task: task}
	s.order = append(s.order, task.ID)
	return cloneTask(task), nil
}

func (s *Store) GetTask(_ context.Context, taskID string) (*entity.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", entity.ErrNotFound, taskID)
	}
	return cloneTask(rec.task), nil
}

func (s *Store) ListTasks(_ context.Context, page, perPage int) ([]entity.Task, entity.Pagination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pagination, start, end := entity.Paginate(len(s.order), page, perPage)
	result := make([]entity.Task, 0, end-start)
	for _, id := range s.order[start:end] {
		result = append(result, *cloneTask(s.tasks[id].task))
	}
	return result, pagination, nil
}

func (s *Store) CreateStep(_ context.Context, taskID string, req entity.StepRequest, isLast bool, additionalInput *entity.Continuation) (*entity.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", entity.ErrNotFound, taskID)
	}

	now := s.now()
	step := &entity.Step{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		Name:            req.Name,
		Input:           req.Input,
		Status:          entity.StepStatusCreated,
		IsLast:          isLast,
		AdditionalInput: additionalInput.Clone(),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rec.steps = append(rec.steps, step)
	return cloneStep(step), nil
}

func (s *Store) findStep(taskID, stepID string) (*entity.Step, error) {
	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", entity.ErrNotFound, taskID)
	}
	for _, step := range rec.steps {
		if step.ID == stepID {
			return step, nil
		}
	}
	return nil, fmt.Errorf("%w: step %q", entity.ErrNotFound, stepID)
}

func (s *Store) GetStep(_ context.Context, taskID, stepID string) (*entity.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	step, err := s.findStep(taskID, stepID)
	if err != nil {
		return nil, err
	}
	return cloneStep(step), nil
}

func (s *Store) UpdateStep(_ context.Context, taskID, stepID string, upd entity.StepUpdate) (*entity.Step, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	step, err := s.findStep(taskID, stepID)
	if err != nil {
		return nil, err
	}
	if upd.Status != nil && !step.Status.CanTransition(*upd.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", entity.ErrStatusRegression, step.Status, *upd.Status)
	}

	if upd.Input != nil {
		step.Input = *upd.Input
	}
	if upd.Status != nil {
		step.Status = *upd.Status
	}
	if upd.Output != nil {
		step.Output = *upd.Output
	}
	if upd.AdditionalOutput != nil {
		step.AdditionalOutput = upd.AdditionalOutput.Clone()
	}
	step.UpdatedAt = s.now()
	return cloneStep(step), nil
}

func (s *Store) ListSteps(_ context.Context, taskID string, page, perPage int) ([]entity.Step, entity.Pagination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, entity.Pagination{}, fmt.Errorf("%w: task %q", entity.ErrNotFound, taskID)
	}
	pagination, start, end := entity.Paginate(len(rec.steps), page, perPage)
	result := make([]entity.Step, 0, end-start)
	for _, step := range rec.steps[start:end] {
		result = append(result, *cloneStep(step))
	}
	return result, pagination, nil
}

// CreateArtifact returns the existing record when the task already has an
// artifact with the same file name.
func (s *Store) CreateArtifact(_ context.Context, artifact entity.Artifact) (*entity.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[artifact.TaskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", entity.ErrNotFound, artifact.TaskID)
	}
	for _, existing := range rec.artifacts {
		if existing.FileName == artifact.FileName {
			copied := *existing
			return &copied, nil
		}
	}

	artifact.ID = uuid.NewString()
	artifact.CreatedAt = s.now()
	stored := artifact
	rec.artifacts = append(rec.artifacts, &stored)
	return &artifact, nil
}

func (s *Store) GetArtifact(_ context.Context, taskID, artifactID string) (*entity.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findArtifact(taskID, func(a *entity.Artifact) bool { return a.ID == artifactID })
}

func (s *Store) GetArtifactByFileName(_ context.Context, taskID, fileName string) (*entity.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findArtifact(taskID, func(a *entity.Artifact) bool { return a.FileName == fileName })
}

func (s *Store) findArtifact(taskID string, match func(*entity.Artifact) bool) (*entity.Artifact, error) {
	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", entity.ErrNotFound, taskID)
	}
	for _, a := range rec.artifacts {
		if match(a) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: artifact in task %q", entity.ErrNotFound, taskID)
}

func (s *Store) UpdateArtifact(_ context.Context, taskID, artifactID, stepID string) (*entity.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: task %q", entity.ErrNotFound, taskID)
	}
	for _, a := range rec.artifacts {
		if a.ID == artifactID {
			a.StepID = stepID
			copied := *a
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("%w: artifact %q", entity.ErrNotFound, artifactID)
}

func (s *Store) ListArtifacts(_ context.Context, taskID string, page, perPage int) ([]entity.Artifact, entity.Pagination, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.tasks[taskID]
	if !ok {
		return nil, entity.Pagination{}, fmt.Errorf("%w: task %q", entity.ErrNotFound, taskID)
	}
	pagination, start, end := entity.Paginate(len(rec.artifacts), page, perPage)
	result := make([]entity.Artifact, 0, end-start)
	for _, a := range rec.artifacts[start:end] {
		result = append(result, *a)
	}
	return result, pagination, nil
}

func (s *Store) Close() error {
	return nil
}

func cloneTask(t entity.Task) *entity.Task {
	t.AdditionalInput = maps.Clone(t.AdditionalInput)
	return &t
}

func cloneStep(step *entity.Step) *entity.Step {
	copied := *step
	if step.AdditionalInput != nil {
		copied.AdditionalInput = step.AdditionalInput.Clone()
	}
	if step.AdditionalOutput != nil {
		copied.AdditionalOutput = step.AdditionalOutput.Clone()
	}
	return &copied
}
