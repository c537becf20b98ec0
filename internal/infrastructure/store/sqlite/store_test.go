package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
	"task-agent/internal/infrastructure/store/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreContract(t *testing.T) {
	storetest.RunContract(t, func(t *testing.T) output.TaskStore {
		return openTestStore(t)
	})
}

func TestInitIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Init())

	var ver int
	require.NoError(t, s.db.QueryRow(`PRAGMA user_version`).Scan(&ver))
	assert.Equal(t, 1, ver)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "agent.db")

	s, err := Open(path)
	require.NoError(t, err)
	task, err := s.CreateTask(ctx, entity.TaskRequest{Input: "persist me"})
	require.NoError(t, err)
	_, err = s.CreateStep(ctx, task.ID, entity.StepRequest{Name: "First Step", Input: "go"}, false, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "persist me", got.Input)

	steps, _, err := s.ListSteps(ctx, task.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "First Step", steps[0].Name)
}
