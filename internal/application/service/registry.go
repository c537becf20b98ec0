package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
)

var _ output.ActionRegistry = (*ActionRegistryImpl)(nil)

// ActionRegistryImpl keeps actions in registration order so the prompt
// catalogue is reproducible.
type ActionRegistryImpl struct {
	mu      sync.RWMutex
	order   []string
	actions map[string]output.ActionDescriptor
}

func NewActionRegistry() *ActionRegistryImpl {
	return &ActionRegistryImpl{
		actions: make(map[string]output.ActionDescriptor),
	}
}

func (r *ActionRegistryImpl) Register(desc output.ActionDescriptor) error {
	if strings.TrimSpace(desc.Name) == "" {
		return fmt.Errorf("register action: name is empty")
	}
	if desc.Handler == nil {
		return fmt.Errorf("register action %q: handler is nil", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.actions[desc.Name]; ok {
		return fmt.Errorf("%w: %q", entity.ErrDuplicateAction, desc.Name)
	}

	params := make([]output.ActionParam, len(desc.Parameters))
	copy(params, desc.Parameters)
	desc.Parameters = params

	r.actions[desc.Name] = desc
	r.order = append(r.order, desc.Name)
	return nil
}

// MustRegister panics on registration errors. Meant for process start.
func (r *ActionRegistryImpl) MustRegister(descs ...output.ActionDescriptor) {
	for _, desc := range descs {
		if err := r.Register(desc); err != nil {
			panic(err)
		}
	}
}

func (r *ActionRegistryImpl) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

func (r *ActionRegistryImpl) Descriptors() []output.ActionDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]output.ActionDescriptor, 0, len(r.order))
	for _, name := range r.order {
		desc := r.actions[name]
		params := make([]output.ActionParam, len(desc.Parameters))
		copy(params, desc.Parameters)
		desc.Parameters = params
		result = append(result, desc)
	}
	return result
}

func (r *ActionRegistryImpl) ListForPrompt() string {
	descs := r.Descriptors()
	lines := make([]string, 0, len(descs))
	for _, desc := range descs {
		lines = append(lines, formatForPrompt(desc))
	}
	return strings.Join(lines, "\n")
}

func formatForPrompt(desc output.ActionDescriptor) string {
	params := make([]string, 0, len(desc.Parameters))
	for _, p := range desc.Parameters {
		req := "optional"
		if p.Required {
			req = "required"
		}
		params = append(params, fmt.Sprintf("%s: %s (%s) - %s", p.Name, p.Type, req, p.Description))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "- %s: %s", desc.Name, desc.Description)
	if len(params) > 0 {
		fmt.Fprintf(&b, "\n  args: %s", strings.Join(params, "; "))
	} else {
		b.WriteString("\n  args: none")
	}
	if desc.OutputType != "" {
		fmt.Fprintf(&b, "\n  output: %s", desc.OutputType)
	}
	return b.String()
}

// Dispatch validates args against the declared parameters and runs the
// handler. Undeclared keys are dropped; a panicking handler is reported as an
// error.
func (r *ActionRegistryImpl) Dispatch(ctx context.Context, ac output.ActionContext, name string, args map[string]any) (result any, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	r.mu.RLock()
	desc, ok := r.actions[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", entity.ErrUnknownAction, name)
	}

	declared := make(map[string]any, len(desc.Parameters))
	for _, p := range desc.Parameters {
		value, present := args[p.Name]
		if !present || value == nil {
			if p.Required {
				return nil, fmt.Errorf("%w: action %q requires %q", entity.ErrInvalidArgument, name, p.Name)
			}
			continue
		}
		declared[p.Name] = value
	}

	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = fmt.Errorf("action %q panicked: %v", name, rec)
		}
	}()

	return desc.Handler(ctx, ac, declared)
}
