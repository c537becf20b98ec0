package httpapi

import (
	"net/http"

	"task-agent/internal/domain/entity"

	"github.com/go-chi/chi/v5"
)

type stepRequest struct {
	Name  string `json:"name"`
	Input string `json:"input"`
	// AdditionalInput is accepted for protocol compatibility and ignored;
	// the step history is owned by the engine.
	AdditionalInput map[string]any `json:"additional_input"`
}

type stepResponse struct {
	entity.Step
	Artifacts []entity.Artifact `json:"artifacts"`
}

type stepListResponse struct {
	Steps      []entity.Step     `json:"steps"`
	Pagination entity.Pagination `json:"pagination"`
}

func (h *handlers) handleExecuteStep(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	var request stepRequest
	if err := decodeJSONBody(r, &request, true); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	step, err := h.Controller.Step(r.Context(), taskID, entity.StepRequest{Name: request.Name, Input: request.Input})
	if err != nil {
		h.Logger.Error("Step request failed", "task_id", taskID, "error", err)
		writeMappedError(w, err)
		return
	}
	h.writeStep(w, r, step)
}

func (h *handlers) handleListSteps(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	steps, pagination, err := h.Store.ListSteps(r.Context(), chi.URLParam(r, "task_id"), page, size)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepListResponse{Steps: steps, Pagination: pagination})
}

func (h *handlers) handleGetStep(w http.ResponseWriter, r *http.Request) {
	step, err := h.Store.GetStep(r.Context(), chi.URLParam(r, "task_id"), chi.URLParam(r, "step_id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	h.writeStep(w, r, step)
}

func (h *handlers) writeStep(w http.ResponseWriter, r *http.Request, step *entity.Step) {
	artifacts, err := h.artifactsFor(r.Context(), step.TaskID, func(a entity.Artifact) bool {
		return a.StepID == step.ID
	})
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{Step: *step, Artifacts: artifacts})
}
