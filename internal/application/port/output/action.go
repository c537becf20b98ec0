package output

import "context"

// ActionContext is what a handler gets to work with besides its arguments.
type ActionContext struct {
	TaskID    string
	StepID    string
	Workspace WorkspacePort
	Store     TaskStore
	Logger    LoggerPort
}

// ActionHandler runs one action. The result is text, raw bytes or any value
// that can be rendered for the model.
type ActionHandler func(ctx context.Context, ac ActionContext, args map[string]any) (any, error)

type ActionParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

type ActionDescriptor struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  []ActionParam `json:"parameters"`
	OutputType  string        `json:"output_type"`
	Handler     ActionHandler `json:"-"`
}

type ActionRegistry interface {
	Register(desc ActionDescriptor) error
	Names() []string
	Descriptors() []ActionDescriptor
	ListForPrompt() string
	Dispatch(ctx context.Context, ac ActionContext, name string, args map[string]any) (any, error)
}
