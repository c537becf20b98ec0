package memory

import (
	"context"
	"testing"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
	"task-agent/internal/infrastructure/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) output.TaskStore {
		return New()
	})
}

func TestReturnedStepsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	task, err := s.CreateTask(ctx, entity.TaskRequest{Input: "t"})
	require.NoError(t, err)
	step, err := s.CreateStep(ctx, task.ID, entity.StepRequest{Input: "x"}, false, nil)
	require.NoError(t, err)

	step.Output = "mutated"
	step.AdditionalInput.Outputs = append(step.AdditionalInput.Outputs, "leak")

	got, err := s.GetStep(ctx, task.ID, step.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Output)
	assert.Empty(t, got.AdditionalInput.Outputs)
}
