package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"task-agent/internal/domain/entity"

	"github.com/go-chi/chi/v5"
)

type artifactListResponse struct {
	Artifacts  []entity.Artifact `json:"artifacts"`
	Pagination entity.Pagination `json:"pagination"`
}

func (h *handlers) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	artifacts, pagination, err := h.Store.ListArtifacts(r.Context(), chi.URLParam(r, "task_id"), page, size)
	if err != nil {
		writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifactListResponse{Artifacts: artifacts, Pagination: pagination})
}

// handleDownloadArtifact streams the artifact file out of the task sandbox.
func (h *handlers) handleDownloadArtifact(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")

	artifact, err := h.Store.GetArtifact(r.Context(), taskID, chi.URLParam(r, "artifact_id"))
	if err != nil {
		writeMappedError(w, err)
		return
	}
	path := artifact.RelativePath
	if path == "" {
		path = artifact.FileName
	}
	data, err := h.Workspace.Read(taskID, path)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
