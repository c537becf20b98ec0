package httpapi

import (
	"context"
	"net/http"

	"task-agent/internal/domain/entity"

	"github.com/go-chi/chi/v5"
)

const artifactScanPage = 100

type taskResponse struct {
	entity.Task
	Artifacts []entity.Artifact `json:"artifacts"`
}

type taskListResponse struct {
	Tasks      []entity.Task     `json:"tasks"`
	Pagination entity.Pagination `json:"pagination"`
}

type abilityResponse struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  []abilityParam `json:"parameters"`
	OutputType  string         `json:"output_type,omitempty"`
}

type abilityParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

func (h *handlers) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var request entity.TaskRequest
	if err := decodeJSONBody(r, &request, false); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	task, err := h.Controller.Create(r.Context(), request)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: *task, Artifacts: []entity.Artifact{}})
}

func (h *handlers) handleListTasks(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	tasks, pagination, err := h.Store.ListTasks(r.Context(), page, size)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskListResponse{Tasks: tasks, Pagination: pagination})
}

func (h *handlers) handleGetTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	task, err := h.Store.GetTask(r.Context(), taskID)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	artifacts, err := h.artifactsFor(r.Context(), taskID, func(entity.Artifact) bool { return true })
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Task: *task, Artifacts: artifacts})
}

func (h *handlers) handleListAbilities(w http.ResponseWriter, _ *http.Request) {
	descs := h.Registry.Descriptors()
	result := make([]abilityResponse, 0, len(descs))
	for _, d := range descs {
		params := make([]abilityParam, 0, len(d.Parameters))
		for _, p := range d.Parameters {
			params = append(params, abilityParam{
				Name:        p.Name,
				Type:        p.Type,
				Required:    p.Required,
				Description: p.Description,
			})
		}
		result = append(result, abilityResponse{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
			OutputType:  d.OutputType,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"abilities": result})
}

// artifactsFor collects every artifact of the task that keep accepts.
func (h *handlers) artifactsFor(ctx context.Context, taskID string, keep func(entity.Artifact) bool) ([]entity.Artifact, error) {
	result := []entity.Artifact{}
	for page := 1; ; page++ {
		items, p, err := h.Store.ListArtifacts(ctx, taskID, page, artifactScanPage)
		if err != nil {
			return nil, err
		}
		for _, a := range items {
			if keep(a) {
				result = append(result, a)
			}
		}
		if page >= p.TotalPages {
			return result, nil
		}
	}
}
