package httpapi

import (
	"net/http"

	"task-agent/internal/application/port/input"
	"task-agent/internal/application/port/output"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
)

const basePath = "/ap/v1/agent"

type Deps struct {
	Controller input.TaskController
	Store      output.TaskStore
	Registry   output.ActionRegistry
	Workspace  output.WorkspacePort
	Logger     output.LoggerPort
}

type Config struct {
	// RequestLog enables per-request access logging.
	RequestLog bool
	JSONLog    bool
	LogLevel   string
}

func DefaultConfig() Config {
	return Config{
		RequestLog: true,
		LogLevel:   "info",
	}
}

type handlers struct {
	Deps
}

// NewRouter serves the agent protocol under /ap/v1/agent.
func NewRouter(deps Deps, cfg Config) http.Handler {
	h := &handlers{Deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.RequestLog {
		r.Use(httplog.RequestLogger(httplog.NewLogger("task-agent", httplog.Options{
			JSON:     cfg.JSONLog,
			LogLevel: cfg.LogLevel,
			Concise:  true,
		})))
	}
	r.Use(middleware.Recoverer)

	r.Route(basePath, func(r chi.Router) {
		r.Get("/abilities", h.handleListAbilities)

		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.handleCreateTask)
			r.Get("/", h.handleListTasks)

			r.Route("/{task_id}", func(r chi.Router) {
				r.Get("/", h.handleGetTask)

				r.Post("/steps", h.handleExecuteStep)
				r.Get("/steps", h.handleListSteps)
				r.Get("/steps/{step_id}", h.handleGetStep)

				r.Get("/artifacts", h.handleListArtifacts)
				r.Get("/artifacts/{artifact_id}", h.handleDownloadArtifact)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errorCodeInvalidRequest, "method not allowed")
	})
	return r
}
