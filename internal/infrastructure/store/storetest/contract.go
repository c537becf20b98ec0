// Package storetest holds the behaviour every TaskStore implementation must
// share. Implementations call RunContract from their own tests.
package storetest

import (
	"context"
	"math"
	"testing"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Factory func(t *testing.T) output.TaskStore

func RunContract(t *testing.T, newStore Factory) {
	t.Run("tasks", func(t *testing.T) { testTasks(t, newStore(t)) })
	t.Run("task pagination", func(t *testing.T) { testTaskPagination(t, newStore(t)) })
	t.Run("page past the end", func(t *testing.T) { testPagePastEnd(t, newStore(t)) })
	t.Run("steps", func(t *testing.T) { testSteps(t, newStore(t)) })
	t.Run("step status regression", func(t *testing.T) { testStatusRegression(t, newStore(t)) })
	t.Run("continuation round trip", func(t *testing.T) { testContinuation(t, newStore(t)) })
	t.Run("artifacts", func(t *testing.T) { testArtifacts(t, newStore(t)) })
	t.Run("missing records", func(t *testing.T) { testMissing(t, newStore(t)) })
}

func testTasks(t *testing.T, s output.TaskStore) {
	ctx := context.Background()

	task, err := s.CreateTask(ctx, entity.TaskRequest{
		Input:           "write hello.txt",
		AdditionalInput: map[string]any{"source": "cli"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "write hello.txt", task.Input)
	assert.False(t, task.CreatedAt.IsZero())

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, "cli", got.AdditionalInput["source"])
}

func testTaskPagination(t *testing.T, s output.TaskStore) {
	ctx := context.Background()

	var ids []string
	for _, in := range []string{"a", "b", "c"} {
		task, err := s.CreateTask(ctx, entity.TaskRequest{Input: in})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	page, p, err := s.ListTasks(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[0], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
	assert.Equal(t, entity.Pagination{TotalItems: 3, TotalPages: 2, CurrentPage: 1, PageSize: 2}, p)

	page, _, err = s.ListTasks(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[2], page[0].ID)

	page, _, err = s.ListTasks(ctx, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func testPagePastEnd(t *testing.T, s output.TaskStore) {
	ctx := context.Background()
	task, err := s.CreateTask(ctx, entity.TaskRequest{Input: "t"})
	require.NoError(t, err)
	_, err = s.CreateStep(ctx, task.ID, entity.StepRequest{Input: "go"}, false, nil)
	require.NoError(t, err)
	_, err = s.CreateArtifact(ctx, entity.Artifact{TaskID: task.ID, FileName: "a.txt", RelativePath: "a.txt"})
	require.NoError(t, err)

	tasks, p, err := s.ListTasks(ctx, math.MaxInt, 10)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Equal(t, 1, p.TotalItems)

	steps, _, err := s.ListSteps(ctx, task.ID, math.MaxInt, 10)
	require.NoError(t, err)
	assert.Empty(t, steps)

	artifacts, _, err := s.ListArtifacts(ctx, task.ID, math.MaxInt, 10)
	require.NoError(t, err)
	assert.Empty(t, artifacts)

	tasks, _, err = s.ListTasks(ctx, 1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func testSteps(t *testing.T, s output.TaskStore) {
	ctx := context.Background()
	task, err := s.CreateTask(ctx, entity.TaskRequest{Input: "t"})
	require.NoError(t, err)

	first, err := s.CreateStep(ctx, task.ID, entity.StepRequest{Name: "First Step", Input: "go"}, false, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusCreated, first.Status)
	assert.Equal(t, task.ID, first.TaskID)
	assert.False(t, first.IsLast)
	require.NotNil(t, first.AdditionalInput)
	assert.Zero(t, first.AdditionalInput.Len())

	second, err := s.CreateStep(ctx, task.ID, entity.StepRequest{Name: "Last Step", Input: "done"}, true, nil)
	require.NoError(t, err)
	assert.True(t, second.IsLast)

	running := entity.StepStatusRunning
	newInput := "go again"
	upd, err := s.UpdateStep(ctx, task.ID, first.ID, entity.StepUpdate{Status: &running, Input: &newInput})
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusRunning, upd.Status)
	assert.Equal(t, "go again", upd.Input)

	completed := entity.StepStatusCompleted
	out := "ok"
	upd, err = s.UpdateStep(ctx, task.ID, first.ID, entity.StepUpdate{Status: &completed, Output: &out})
	require.NoError(t, err)
	assert.Equal(t, "ok", upd.Output)
	assert.Equal(t, "go again", upd.Input)
	assert.False(t, upd.Done())

	steps, p, err := s.ListSteps(ctx, task.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, first.ID, steps[0].ID)
	assert.Equal(t, second.ID, steps[1].ID)
	assert.Equal(t, 2, p.TotalItems)
}

func testStatusRegression(t *testing.T, s output.TaskStore) {
	ctx := context.Background()
	task, err := s.CreateTask(ctx, entity.TaskRequest{Input: "t"})
	require.NoError(t, err)
	step, err := s.CreateStep(ctx, task.ID, entity.StepRequest{Input: "x"}, false, nil)
	require.NoError(t, err)

	completed := entity.StepStatusCompleted
	_, err = s.UpdateStep(ctx, task.ID, step.ID, entity.StepUpdate{Status: &completed})
	require.NoError(t, err)

	running := entity.StepStatusRunning
	_, err = s.UpdateStep(ctx, task.ID, step.ID, entity.StepUpdate{Status: &running})
	assert.ErrorIs(t, err, entity.ErrStatusRegression)

	got, err := s.GetStep(ctx, task.ID, step.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusCompleted, got.Status)
}

func testContinuation(t *testing.T, s output.TaskStore) {
	ctx := context.Background()
	task, err := s.CreateTask(ctx, entity.TaskRequest{Input: "t"})
	require.NoError(t, err)

	history := (*entity.Continuation)(nil).Append(entity.ActionRecord{
		Ability: entity.Ability{Name: "write_file", Args: map[string]any{"file_path": "hello.txt"}},
		Output:  "File has been written successfully.",
	}, "Writing the file")

	step, err := s.CreateStep(ctx, task.ID, entity.StepRequest{Input: "x"}, false, history)
	require.NoError(t, err)

	next := history.Append(entity.ActionRecord{Ability: entity.Ability{Name: "finish"}, Output: "bye"}, "done")
	_, err = s.UpdateStep(ctx, task.ID, step.ID, entity.StepUpdate{AdditionalOutput: next})
	require.NoError(t, err)

	got, err := s.GetStep(ctx, task.ID, step.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.AdditionalInput.Len())
	assert.Equal(t, "write_file", got.AdditionalInput.Actions[0].Ability.Name)
	assert.Equal(t, "hello.txt", got.AdditionalInput.Actions[0].Ability.Args["file_path"])
	assert.Equal(t, []string{"Writing the file"}, got.AdditionalInput.Outputs)

	require.Equal(t, 2, got.AdditionalOutput.Len())
	assert.Equal(t, "finish", got.AdditionalOutput.Actions[1].Ability.Name)
	assert.Equal(t, []string{"Writing the file", "done"}, got.AdditionalOutput.Outputs)
}

func testArtifacts(t *testing.T, s output.TaskStore) {
	ctx := context.Background()
	task, err := s.CreateTask(ctx, entity.TaskRequest{Input: "t"})
	require.NoError(t, err)
	step, err := s.CreateStep(ctx, task.ID, entity.StepRequest{Input: "x"}, false, nil)
	require.NoError(t, err)

	a, err := s.CreateArtifact(ctx, entity.Artifact{
		TaskID:       task.ID,
		FileName:     "hello.txt",
		RelativePath: "hello.txt",
		AgentCreated: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID)
	assert.Empty(t, a.StepID)
	assert.True(t, a.AgentCreated)

	again, err := s.CreateArtifact(ctx, entity.Artifact{TaskID: task.ID, FileName: "hello.txt", RelativePath: "other/hello.txt"})
	require.NoError(t, err)
	assert.Equal(t, a.ID, again.ID)

	byName, err := s.GetArtifactByFileName(ctx, task.ID, "hello.txt")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	linked, err := s.UpdateArtifact(ctx, task.ID, a.ID, step.ID)
	require.NoError(t, err)
	assert.Equal(t, step.ID, linked.StepID)

	_, err = s.CreateArtifact(ctx, entity.Artifact{TaskID: task.ID, FileName: "b.py", RelativePath: "b.py"})
	require.NoError(t, err)

	list, p, err := s.ListArtifacts(ctx, task.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "hello.txt", list[0].FileName)
	assert.Equal(t, "b.py", list[1].FileName)
	assert.Equal(t, 2, p.TotalItems)

	other, err := s.CreateTask(ctx, entity.TaskRequest{Input: "other"})
	require.NoError(t, err)
	_, err = s.GetArtifact(ctx, other.ID, a.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func testMissing(t *testing.T, s output.TaskStore) {
	ctx := context.Background()

	_, err := s.GetTask(ctx, "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = s.CreateStep(ctx, "nope", entity.StepRequest{Input: "x"}, false, nil)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, _, err = s.ListSteps(ctx, "nope", 1, 10)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	task, err := s.CreateTask(ctx, entity.TaskRequest{Input: "t"})
	require.NoError(t, err)

	_, err = s.GetStep(ctx, task.ID, "nope")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	out := "x"
	_, err = s.UpdateStep(ctx, task.ID, "nope", entity.StepUpdate{Output: &out})
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = s.GetArtifactByFileName(ctx, task.ID, "missing.txt")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = s.UpdateArtifact(ctx, task.ID, "nope", "step")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = s.CreateArtifact(ctx, entity.Artifact{TaskID: "nope", FileName: "a.txt"})
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
