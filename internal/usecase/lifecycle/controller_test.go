package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"task-agent/internal/adapter/action"
	"task-agent/internal/application/port/input"
	"task-agent/internal/application/port/output"
	"task-agent/internal/application/service"
	"task-agent/internal/domain/entity"
	"task-agent/internal/infrastructure/logger"
	"task-agent/internal/infrastructure/prompts"
	"task-agent/internal/infrastructure/store/memory"
	"task-agent/internal/infrastructure/workspace"
	"task-agent/internal/usecase/stepengine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// fakeExecutor completes one step per call and marks the finishAfter-th one
// as terminal.
type fakeExecutor struct {
	store       output.TaskStore
	finishAfter int
	err         error
	hold        chan struct{}

	mu        sync.Mutex
	requests  []entity.StepRequest
	cycles    map[string]int
	active    atomic.Int32
	maxActive atomic.Int32
}

func newFakeExecutor(store output.TaskStore, finishAfter int) *fakeExecutor {
	return &fakeExecutor{store: store, finishAfter: finishAfter, cycles: map[string]int{}}
}

func (f *fakeExecutor) ExecuteStep(ctx context.Context, taskID string, req entity.StepRequest) (*entity.Step, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.hold != nil {
		<-f.hold
	}

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.cycles[taskID]++
	cycle := f.cycles[taskID]
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	step, err := f.store.CreateStep(ctx, taskID, entity.StepRequest{Input: req.Input}, cycle >= f.finishAfter, nil)
	if err != nil {
		return nil, err
	}
	completed := entity.StepStatusCompleted
	return f.store.UpdateStep(ctx, taskID, step.ID, entity.StepUpdate{Status: &completed})
}

type recordingReporter struct {
	tasks    int
	steps    []int
	finished *entity.Step
}

func (r *recordingReporter) ShowTask(context.Context, *entity.Task) { r.tasks++ }

func (r *recordingReporter) ShowStep(_ context.Context, iteration, _ int, _ *entity.Step) {
	r.steps = append(r.steps, iteration)
}

func (r *recordingReporter) ShowFinished(_ context.Context, step *entity.Step) { r.finished = step }

func TestCreate_LogsTask(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	store := memory.New()
	c := NewController(store, newFakeExecutor(store, 1), logger.NewFromZap(zap.New(core)))

	task, err := c.Create(context.Background(), entity.TaskRequest{Input: "Write the word 'Washington' to a .txt file please"})
	require.NoError(t, err)

	entries := logs.FilterMessage("Task created").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, task.ID, fields["task_id"])
	assert.Equal(t, "Write the word 'Washington' to a .txt fi...", fields["input"])
}

func TestDrive_FeedsTaskInputThenContinues(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exec := newFakeExecutor(store, 3)
	c := NewController(store, exec, logger.NewNop())
	task, err := c.Create(ctx, entity.TaskRequest{Input: "do it"})
	require.NoError(t, err)

	rep := &recordingReporter{}
	res, err := c.Drive(ctx, task.ID, input.DriveOptions{Reporter: rep})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Cycles)
	assert.True(t, res.LastStep.Done())
	assert.Equal(t, task.ID, res.Task.ID)
	require.Len(t, exec.requests, 3)
	assert.Equal(t, "do it", exec.requests[0].Input)
	assert.Empty(t, exec.requests[1].Input)
	assert.Empty(t, exec.requests[2].Input)

	assert.Equal(t, 1, rep.tasks)
	assert.Equal(t, []int{1, 2, 3}, rep.steps)
	assert.Equal(t, res.LastStep.ID, rep.finished.ID)
}

func TestDrive_BudgetExhausted(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := NewController(store, newFakeExecutor(store, 100), logger.NewNop())
	task, err := c.Create(ctx, entity.TaskRequest{Input: "loop"})
	require.NoError(t, err)

	res, err := c.Drive(ctx, task.ID, input.DriveOptions{MaxSteps: 2})
	assert.ErrorIs(t, err, entity.ErrStepBudgetExhausted)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Cycles)
	assert.False(t, res.LastStep.Done())
}

func TestDrive_FinishedTaskReturnsImmediately(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exec := newFakeExecutor(store, 1)
	c := NewController(store, exec, logger.NewNop())
	task, err := c.Create(ctx, entity.TaskRequest{Input: "once"})
	require.NoError(t, err)

	_, err = c.Drive(ctx, task.ID, input.DriveOptions{})
	require.NoError(t, err)

	rep := &recordingReporter{}
	res, err := c.Drive(ctx, task.ID, input.DriveOptions{Reporter: rep})
	require.NoError(t, err)
	assert.Zero(t, res.Cycles)
	assert.True(t, res.LastStep.Done())
	assert.Len(t, exec.requests, 1)
	assert.Zero(t, rep.tasks)
}

func TestDrive_PropagatesErrors(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exec := newFakeExecutor(store, 1)
	exec.err = errors.New("model unavailable")
	c := NewController(store, exec, logger.NewNop())
	task, err := c.Create(ctx, entity.TaskRequest{Input: "x"})
	require.NoError(t, err)

	res, err := c.Drive(ctx, task.ID, input.DriveOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
	assert.Zero(t, res.Cycles)

	_, err = c.Drive(ctx, "missing", input.DriveOptions{})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestStep_SerializesPerTask(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exec := newFakeExecutor(store, 1000)
	c := NewController(store, exec, logger.NewNop())
	task, err := c.Create(ctx, entity.TaskRequest{Input: "x"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Step(ctx, task.ID, entity.StepRequest{Input: "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), exec.maxActive.Load())
	assert.Len(t, exec.requests, 8)
	assert.Empty(t, c.locks)
}

func TestStep_DifferentTasksRunInParallel(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	exec := newFakeExecutor(store, 1000)
	exec.hold = make(chan struct{})
	c := NewController(store, exec, logger.NewNop())
	a, err := c.Create(ctx, entity.TaskRequest{Input: "a"})
	require.NoError(t, err)
	b, err := c.Create(ctx, entity.TaskRequest{Input: "b"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []string{a.ID, b.ID} {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Step(ctx, id, entity.StepRequest{Input: "x"})
			assert.NoError(t, err)
		}()
	}

	require.Eventually(t, func() bool { return exec.active.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	close(exec.hold)
	wg.Wait()
	assert.Equal(t, int32(2), exec.maxActive.Load())
}

func TestStep_GivesUpWhenContextEnds(t *testing.T) {
	store := memory.New()
	exec := newFakeExecutor(store, 1000)
	exec.hold = make(chan struct{})
	c := NewController(store, exec, logger.NewNop())
	task, err := c.Create(context.Background(), entity.TaskRequest{Input: "x"})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Step(context.Background(), task.ID, entity.StepRequest{Input: "x"})
	}()
	require.Eventually(t, func() bool { return exec.active.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Step(ctx, task.ID, entity.StepRequest{Input: "y"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(exec.hold)
	<-done
}

type scriptedLLM struct{ answers []string }

func (s *scriptedLLM) Chat(context.Context, output.ChatRequest) (*output.ChatResponse, error) {
	if len(s.answers) == 0 {
		return nil, errors.New("no scripted answer left")
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return &output.ChatResponse{Message: entity.Message{Role: entity.RoleAssistant, Content: a}}, nil
}

func TestDrive_WithStepEngine(t *testing.T) {
	ctx := context.Background()
	ws, err := workspace.NewLocalWorkspace(workspace.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	renderer, err := prompts.NewRenderer()
	require.NoError(t, err)
	registry := service.NewActionRegistry()
	require.NoError(t, action.RegisterAll(registry, action.Deps{}))
	store := memory.New()

	llm := &scriptedLLM{answers: []string{
		`{"thoughts":{"speak":"Writing"},"ability":{"name":"write_file","args":{"file_path":"hello.txt","data":"hi"}}}`,
		`{"ability":{"name":"finish","args":{"reason":"hello.txt written"}}}`,
	}}
	engine := stepengine.NewEngine(store, llm, renderer, registry, ws, logger.NewNop())
	c := NewController(store, engine, logger.NewNop())

	task, err := c.Create(ctx, entity.TaskRequest{Input: "create hello.txt containing 'hi'"})
	require.NoError(t, err)

	res, err := c.Drive(ctx, task.ID, input.DriveOptions{MaxSteps: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Cycles)
	assert.Equal(t, "The task has been completed.", res.LastStep.Output)
	assert.Equal(t, []string{"Writing", "hello.txt written"}, res.LastStep.AdditionalOutput.Outputs)

	data, err := ws.Read(task.ID, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))

	arts, _, err := store.ListArtifacts(ctx, task.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.NotEmpty(t, arts[0].StepID)
}
