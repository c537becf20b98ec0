package stepengine

import (
	"context"
	"fmt"
	"slices"

	"task-agent/internal/application/port/input"
	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
	"task-agent/internal/infrastructure/telemetry"
	"task-agent/internal/usecase/artifacts"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var _ input.StepExecutor = (*Engine)(nil)

// Engine runs one decision/action cycle per call.
type Engine struct {
	store       output.TaskStore
	llm         output.LLMPort
	prompts     output.PromptRenderer
	registry    output.ActionRegistry
	workspace   output.WorkspacePort
	reconciler  *artifacts.Reconciler
	logger      output.LoggerPort
	tracer      trace.Tracer
	temperature float32
}

type Option func(*Engine)

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithTemperature(t float32) Option {
	return func(e *Engine) { e.temperature = t }
}

func NewEngine(
	store output.TaskStore,
	llm output.LLMPort,
	prompts output.PromptRenderer,
	registry output.ActionRegistry,
	workspace output.WorkspacePort,
	logger output.LoggerPort,
	opts ...Option,
) *Engine {
	e := &Engine{
		store:      store,
		llm:        llm,
		prompts:    prompts,
		registry:   registry,
		workspace:  workspace,
		reconciler: artifacts.NewReconciler(store, workspace, logger),
		logger:     logger,
		tracer:     telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteStep resolves the active step of the task and advances it by one
// cycle. A non-empty req.Input starts (or re-targets) the active step.
//
// A model answer that cannot be decoded leaves the step running and returns
// it without error, so the same step can be retried.
func (e *Engine) ExecuteStep(ctx context.Context, taskID string, req entity.StepRequest) (_ *entity.Step, err error) {
	ctx, span := e.tracer.Start(ctx, "step.cycle", trace.WithAttributes(attribute.String("task_id", taskID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	task, err := e.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}

	step, err := e.resolveStep(ctx, taskID, req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("step_id", step.ID))
	span.AddEvent("step.resolved", trace.WithAttributes(attribute.String("name", step.Name)))

	log := e.logger.WithFields(map[string]any{"task_id": taskID, "step_id": step.ID})

	if step.IsLast {
		return e.finalize(ctx, span, log, step)
	}

	running := entity.StepStatusRunning
	step, err = e.store.UpdateStep(ctx, taskID, step.ID, entity.StepUpdate{Status: &running})
	if err != nil {
		return nil, fmt.Errorf("mark step running: %w", err)
	}
	span.AddEvent("step.running")

	messages, err := e.buildMessages(task, step)
	if err != nil {
		return nil, err
	}

	log.Debug("Executing step", "input", preview(step.Input, 80))
	resp, err := e.llm.Chat(ctx, output.ChatRequest{Messages: messages, Temperature: e.temperature})
	if err != nil {
		return nil, fmt.Errorf("model completion: %w", err)
	}
	span.AddEvent("model.answered", trace.WithAttributes(attribute.Int("total_tokens", resp.TotalTokens)))

	decision, err := ParseDecision(resp.Message.Content)
	if err != nil {
		log.Error("Unable to decode model answer", "error", err, "answer", preview(resp.Message.Content, 200))
		span.AddEvent("decision.rejected", trace.WithAttributes(attribute.String("error", err.Error())))
		return step, nil
	}

	name := decision.ActionName()
	args := decision.ActionArgs()
	span.SetAttributes(attribute.String("action", name))

	names := e.registry.Names()
	known := name != "" && slices.Contains(names, name)

	var actionOutput string
	if !known {
		actionOutput = invalidAbilityMessage(names)
		log.Warn("Model chose an unknown action", "action", name)
		span.AddEvent("action.unknown", trace.WithAttributes(attribute.String("action", name)))
	} else {
		actionOutput, err = e.dispatch(ctx, log, step, name, args)
		if err != nil {
			return nil, err
		}
		span.AddEvent("action.dispatched")

		created, err := e.reconciler.Reconcile(ctx, taskID)
		if err != nil {
			return nil, fmt.Errorf("reconcile artifacts: %w", err)
		}
		span.AddEvent("artifacts.reconciled", trace.WithAttributes(attribute.Int("created", len(created))))
	}

	isLast := known && finishNames[name]
	var summary, nextInput string
	if isLast {
		summary = finishReason(args)
		nextInput = finishedInput
	} else {
		summary = decision.Speak()
		if summary == "" {
			summary = missingSummary
		}
		nextInput = fmt.Sprintf(verifyInput, actionOutput)
	}

	history := step.AdditionalInput.Append(entity.ActionRecord{
		Ability: entity.Ability{Name: name, Args: args}.Clone(),
		Output:  actionOutput,
	}, summary)

	completed := entity.StepStatusCompleted
	step, err = e.store.UpdateStep(ctx, taskID, step.ID, entity.StepUpdate{
		Status:           &completed,
		Output:           &actionOutput,
		AdditionalOutput: history,
	})
	if err != nil {
		return nil, fmt.Errorf("complete step: %w", err)
	}

	nextName := nextStepName
	if isLast {
		nextName = lastStepName
	}
	next, err := e.store.CreateStep(ctx, taskID, entity.StepRequest{Name: nextName, Input: nextInput}, isLast, history)
	if err != nil {
		return nil, fmt.Errorf("create next step: %w", err)
	}

	log.Info("Step completed", "action", name, "summary", preview(summary, 120), "next_step_id", next.ID, "is_last", isLast)
	span.AddEvent("step.completed", trace.WithAttributes(
		attribute.String("next_step_id", next.ID),
		attribute.Bool("is_last", isLast),
		attribute.Int("history", history.Len()),
	))
	return step, nil
}

// dispatch runs the action and turns any failure into output text. Only a
// cancelled context is returned as an error.
func (e *Engine) dispatch(ctx context.Context, log output.LoggerPort, step *entity.Step, name string, args map[string]any) (string, error) {
	result, err := e.registry.Dispatch(ctx, output.ActionContext{
		TaskID:    step.TaskID,
		StepID:    step.ID,
		Workspace: e.workspace,
		Store:     e.store,
		Logger:    log,
	}, name, args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("dispatch %q: %w", name, ctxErr)
		}
		log.Error("Unable to run action", "action", name, "error", err)
		return err.Error(), nil
	}
	return renderOutput(result), nil
}

func (e *Engine) finalize(ctx context.Context, span trace.Span, log output.LoggerPort, step *entity.Step) (*entity.Step, error) {
	if _, err := e.reconciler.Reconcile(ctx, step.TaskID); err != nil {
		return nil, fmt.Errorf("reconcile artifacts: %w", err)
	}
	linked, err := e.reconciler.LinkUnlinked(ctx, step.TaskID, step.ID)
	if err != nil {
		return nil, err
	}

	out := finalOutput
	completed := entity.StepStatusCompleted
	step, err = e.store.UpdateStep(ctx, step.TaskID, step.ID, entity.StepUpdate{
		Status:           &completed,
		Output:           &out,
		AdditionalOutput: step.AdditionalInput.Clone(),
	})
	if err != nil {
		return nil, fmt.Errorf("finalize step: %w", err)
	}

	log.Info("Task finished", "linked_artifacts", linked)
	span.AddEvent("step.finalized", trace.WithAttributes(attribute.Int("linked_artifacts", linked)))
	return step, nil
}

func (e *Engine) buildMessages(task *entity.Task, step *entity.Step) ([]entity.Message, error) {
	system, err := e.prompts.Render(systemTemplate, nil)
	if err != nil {
		return nil, fmt.Errorf("render system prompt: %w", err)
	}

	prompt, err := e.prompts.Render(stepTemplate, map[string]any{
		"task":             task.Input,
		"abilities":        e.registry.ListForPrompt(),
		"previous_actions": historyView(step.AdditionalInput),
		"previous_output":  summaries(step.AdditionalInput),
	})
	if err != nil {
		return nil, fmt.Errorf("render step prompt: %w", err)
	}

	return []entity.Message{
		{Role: entity.RoleSystem, Content: system},
		{Role: entity.RoleUser, Content: prompt + currentStepHint + step.Input},
	}, nil
}

// resolveStep finds the step this cycle works on. At most one step of a task
// is ever not completed.
func (e *Engine) resolveStep(ctx context.Context, taskID string, req entity.StepRequest) (*entity.Step, error) {
	latest, err := e.latestStep(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if req.Input == "" {
		switch {
		case latest == nil:
			return nil, fmt.Errorf("%w: task %q has no steps", entity.ErrInconsistentState, taskID)
		case latest.Done():
			return nil, fmt.Errorf("%w: task %q", entity.ErrTaskFinished, taskID)
		case latest.Status == entity.StepStatusCompleted:
			return nil, fmt.Errorf("%w: task %q has no open step", entity.ErrInconsistentState, taskID)
		}
		return latest, nil
	}

	if latest != nil && latest.Status != entity.StepStatusCompleted {
		if latest.IsLast || latest.Input == req.Input {
			return latest, nil
		}
		step, err := e.store.UpdateStep(ctx, taskID, latest.ID, entity.StepUpdate{Input: &req.Input})
		if err != nil {
			return nil, fmt.Errorf("update step input: %w", err)
		}
		return step, nil
	}
	if latest.Done() {
		return nil, fmt.Errorf("%w: task %q", entity.ErrTaskFinished, taskID)
	}

	name := req.Name
	if name == "" {
		name = firstStepName
	}
	var carry *entity.Continuation
	if latest != nil {
		carry = latest.AdditionalOutput
	}
	step, err := e.store.CreateStep(ctx, taskID, entity.StepRequest{Name: name, Input: req.Input}, false, carry)
	if err != nil {
		return nil, fmt.Errorf("create step: %w", err)
	}
	return step, nil
}

func (e *Engine) latestStep(ctx context.Context, taskID string) (*entity.Step, error) {
	_, p, err := e.store.ListSteps(ctx, taskID, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	if p.TotalItems == 0 {
		return nil, nil
	}
	steps, _, err := e.store.ListSteps(ctx, taskID, p.TotalItems, 1)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	if len(steps) == 0 {
		return nil, nil
	}
	return &steps[len(steps)-1], nil
}
