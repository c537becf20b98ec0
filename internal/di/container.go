package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"task-agent/internal/adapter/action"
	"task-agent/internal/adapter/httpapi"
	"task-agent/internal/application/port/input"
	"task-agent/internal/application/port/output"
	"task-agent/internal/application/service"
	"task-agent/internal/infrastructure/llm/openai"
	"task-agent/internal/infrastructure/logger"
	"task-agent/internal/infrastructure/prompts"
	"task-agent/internal/infrastructure/store/memory"
	"task-agent/internal/infrastructure/store/sqlite"
	"task-agent/internal/infrastructure/telemetry"
	"task-agent/internal/infrastructure/webpage"
	"task-agent/internal/infrastructure/workspace"
	"task-agent/internal/usecase/lifecycle"
	"task-agent/internal/usecase/stepengine"
)

type Container struct {
	Logger     output.LoggerPort
	Store      output.TaskStore
	Workspace  output.WorkspacePort
	Registry   output.ActionRegistry
	LLM        output.LLMPort
	Controller input.TaskController

	shutdownTracing func(context.Context) error
}

// NewContainer wires the agent. An LLM may be passed to replace the OpenAI
// adapter.
func NewContainer(ctx context.Context, cfg Config, llm output.LLMPort) (*Container, error) {
	log, err := logger.NewLoggerAdapter(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Dir:    cfg.LogDir,
		Name:   cfg.LogName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	c := &Container{Logger: log}

	c.shutdownTracing, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName:    telemetry.InstrumentationName,
		ServiceVersion: cfg.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}

	wsCfg := workspace.DefaultConfig(cfg.WorkspacePath)
	if cfg.PythonBin != "" {
		wsCfg.Interpreter = cfg.PythonBin
	}
	ws, err := workspace.NewLocalWorkspace(wsCfg)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	c.Workspace = ws

	if cfg.DatabasePath != "" {
		store, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		c.Store = store
	} else {
		c.Store = memory.New()
	}

	registry := service.NewActionRegistry()
	deps := action.Deps{ScriptTimeout: cfg.ScriptTimeout}
	if cfg.ReadWebpage {
		deps.Pages = webpage.NewReader()
	}
	if err := action.RegisterAll(registry, deps); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to register actions: %w", err)
	}
	c.Registry = registry

	renderer, err := prompts.NewRenderer()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	if llm == nil {
		if cfg.OpenAIAPIKey == "" {
			c.Close()
			return nil, errors.New("OPENAI_API_KEY is required")
		}
		llmCfg := openai.DefaultConfig(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if cfg.OpenAIBaseURL != "" {
			llmCfg.BaseURL = cfg.OpenAIBaseURL
		}
		llmCfg.JSONMode = cfg.OpenAIJSONMode
		llmCfg.Logger = log
		llm = openai.NewAdapter(llmCfg)
	}
	c.LLM = llm

	engine := stepengine.NewEngine(c.Store, llm, renderer, registry, ws, log,
		stepengine.WithTemperature(cfg.Temperature))
	c.Controller = lifecycle.NewController(c.Store, engine, log)

	log.Info("Agent ready",
		"workspace", ws.BasePath(),
		"database", cfg.DatabasePath,
		"abilities", registry.Names(),
		"tracing", cfg.OTLPEndpoint != "")
	return c, nil
}

func (c *Container) Router(cfg httpapi.Config) http.Handler {
	return httpapi.NewRouter(httpapi.Deps{
		Controller: c.Controller,
		Store:      c.Store,
		Registry:   c.Registry,
		Workspace:  c.Workspace,
		Logger:     c.Logger,
	}, cfg)
}

func (c *Container) Close() {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.Logger.Error("Failed to close store", "error", err)
		}
	}
	if c.shutdownTracing != nil {
		if err := c.shutdownTracing(context.Background()); err != nil {
			c.Logger.Error("Failed to flush traces", "error", err)
		}
	}
	if c.Logger != nil {
		c.Logger.Close()
	}
}
