package output

type PromptRenderer interface {
	Render(name string, values map[string]any) (string, error)
}
