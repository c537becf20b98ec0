package prompts

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"

	"github.com/tmc/langchaingo/prompts"
)

//go:embed templates/*.txt
var templateFS embed.FS

var _ output.PromptRenderer = (*Renderer)(nil)

// Renderer renders named Go templates through langchaingo prompt templates.
type Renderer struct {
	templates map[string]prompts.PromptTemplate
}

// NewRenderer loads every embedded template. The name of a template is its
// file name without extension.
func NewRenderer() (*Renderer, error) {
	entries, err := templateFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	sources := make(map[string]string, len(entries))
	for _, e := range entries {
		raw, err := templateFS.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", e.Name(), err)
		}
		sources[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = string(raw)
	}
	return NewRendererFromSources(sources), nil
}

// NewRendererFromSources builds a renderer from in-memory templates.
func NewRendererFromSources(sources map[string]string) *Renderer {
	r := &Renderer{templates: make(map[string]prompts.PromptTemplate, len(sources))}
	for name, src := range sources {
		tmpl := prompts.NewPromptTemplate(src, nil)
		tmpl.TemplateFormat = prompts.TemplateFormatGoTemplate
		r.templates[name] = tmpl
	}
	return r
}

func (r *Renderer) Render(name string, values map[string]any) (string, error) {
	tmpl, ok := r.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: prompt template %q", entity.ErrNotFound, name)
	}
	if values == nil {
		values = map[string]any{}
	}
	out, err := tmpl.Format(values)
	if err != nil {
		return "", fmt.Errorf("render %q: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}
