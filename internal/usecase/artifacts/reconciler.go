package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
)

const pageSize = 100

// Reconciler keeps artifact records in line with the files in a task sandbox.
type Reconciler struct {
	store     output.TaskStore
	workspace output.WorkspacePort
	logger    output.LoggerPort
}

func NewReconciler(store output.TaskStore, workspace output.WorkspacePort, logger output.LoggerPort) *Reconciler {
	return &Reconciler{
		store:     store,
		workspace: workspace,
		logger:    logger,
	}
}

// Reconcile registers every sandbox file that has no artifact record yet and
// returns the records it created. Files already known by name are skipped.
func (r *Reconciler) Reconcile(ctx context.Context, taskID string) ([]entity.Artifact, error) {
	files, err := r.workspace.Files(taskID)
	if err != nil {
		return nil, fmt.Errorf("scan workspace: %w", err)
	}

	var created []entity.Artifact
	for _, rel := range files {
		name := path.Base(rel)
		_, err := r.store.GetArtifactByFileName(ctx, taskID, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, entity.ErrNotFound) {
			return created, fmt.Errorf("lookup artifact %q: %w", name, err)
		}

		a, err := r.store.CreateArtifact(ctx, entity.Artifact{
			TaskID:       taskID,
			FileName:     name,
			RelativePath: rel,
		})
		if err != nil {
			return created, fmt.Errorf("create artifact %q: %w", name, err)
		}
		r.logger.Debug("Artifact discovered", "task_id", taskID, "artifact_id", a.ID, "file_name", name)
		created = append(created, *a)
	}
	return created, nil
}

// LinkUnlinked attaches every artifact without an owning step to stepID.
func (r *Reconciler) LinkUnlinked(ctx context.Context, taskID, stepID string) (int, error) {
	var unlinked []entity.Artifact
	for page := 1; ; page++ {
		items, p, err := r.store.ListArtifacts(ctx, taskID, page, pageSize)
		if err != nil {
			return 0, fmt.Errorf("list artifacts: %w", err)
		}
		for _, a := range items {
			if a.StepID == "" {
				unlinked = append(unlinked, a)
			}
		}
		if page >= p.TotalPages {
			break
		}
	}

	for _, a := range unlinked {
		if _, err := r.store.UpdateArtifact(ctx, taskID, a.ID, stepID); err != nil {
			return 0, fmt.Errorf("link artifact %q: %w", a.FileName, err)
		}
	}
	return len(unlinked), nil
}
