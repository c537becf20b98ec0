package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"task-agent/internal/application/port/input"
	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
	"task-agent/internal/infrastructure/logger"
)

var _ input.TaskController = (*Controller)(nil)

const inputPreviewLen = 40

// Controller creates tasks and drives their steps. Cycles of one task never
// overlap; different tasks run independently.
type Controller struct {
	store    output.TaskStore
	executor input.StepExecutor
	logger   output.LoggerPort

	mu    sync.Mutex
	locks map[string]*taskLock
}

type taskLock struct {
	sem  chan struct{}
	refs int
}

func NewController(store output.TaskStore, executor input.StepExecutor, logger output.LoggerPort) *Controller {
	return &Controller{
		store:    store,
		executor: executor,
		logger:   logger,
		locks:    make(map[string]*taskLock),
	}
}

func (c *Controller) Create(ctx context.Context, req entity.TaskRequest) (*entity.Task, error) {
	task, err := c.store.CreateTask(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	c.logger.Info("Task created", "task_id", task.ID, "input", logger.Preview(task.Input, inputPreviewLen))
	return task, nil
}

// Step runs one cycle. It waits for a cycle already running on the same task
// and gives up when ctx is done first.
func (c *Controller) Step(ctx context.Context, taskID string, req entity.StepRequest) (*entity.Step, error) {
	release, err := c.acquire(ctx, taskID)
	if err != nil {
		return nil, err
	}
	defer release()

	return c.executor.ExecuteStep(ctx, taskID, req)
}

// Drive runs cycles until the terminal step completes. The task input is fed
// to the first cycle when the task has no steps yet.
func (c *Controller) Drive(ctx context.Context, taskID string, opts input.DriveOptions) (*input.DriveResult, error) {
	task, err := c.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}

	result := &input.DriveResult{Task: task}
	latest, err := c.latestStep(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if latest.Done() {
		result.LastStep = latest
		return result, nil
	}

	reporter.ShowTask(ctx, task)
	log := c.logger.WithField("task_id", taskID)

	var req entity.StepRequest
	if latest == nil {
		req.Input = task.Input
	}
	for {
		if opts.MaxSteps > 0 && result.Cycles >= opts.MaxSteps {
			log.Warn("Step budget exhausted", "max_steps", opts.MaxSteps)
			return result, fmt.Errorf("%w: %d cycles", entity.ErrStepBudgetExhausted, opts.MaxSteps)
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		step, err := c.Step(ctx, taskID, req)
		if err != nil {
			return result, err
		}
		req = entity.StepRequest{}
		result.Cycles++
		result.LastStep = step
		reporter.ShowStep(ctx, result.Cycles, opts.MaxSteps, step)

		if step.Done() {
			log.Info("Task drive finished", "cycles", result.Cycles)
			reporter.ShowFinished(ctx, step)
			return result, nil
		}
	}
}

func (c *Controller) latestStep(ctx context.Context, taskID string) (*entity.Step, error) {
	_, p, err := c.store.ListSteps(ctx, taskID, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	if p.TotalItems == 0 {
		return nil, nil
	}
	steps, _, err := c.store.ListSteps(ctx, taskID, p.TotalItems, 1)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, nil
	}
	return &steps[0], nil
}

func (c *Controller) acquire(ctx context.Context, taskID string) (func(), error) {
	c.mu.Lock()
	l, ok := c.locks[taskID]
	if !ok {
		l = &taskLock{sem: make(chan struct{}, 1)}
		c.locks[taskID] = l
	}
	l.refs++
	c.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			c.forget(taskID, l)
		}, nil
	case <-ctx.Done():
		c.forget(taskID, l)
		return nil, ctx.Err()
	}
}

func (c *Controller) forget(taskID string, l *taskLock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, taskID)
	}
}

type nopReporter struct{}

func (nopReporter) ShowTask(context.Context, *entity.Task)           {}
func (nopReporter) ShowStep(context.Context, int, int, *entity.Step) {}
func (nopReporter) ShowFinished(context.Context, *entity.Step)       {}
