package action

import (
	"time"

	"task-agent/internal/application/port/output"
)

type Deps struct {
	ScriptTimeout time.Duration
	// Pages enables read_webpage when set.
	Pages PageReader
}

// Catalog lists the built-in actions in the order they are offered to the model.
func Catalog(deps Deps) []output.ActionDescriptor {
	descs := []output.ActionDescriptor{
		ListFiles(),
		WriteFile(),
		ReadFile(),
		ExecutePythonFile(deps.ScriptTimeout),
	}
	if deps.Pages != nil {
		descs = append(descs, ReadWebpage(deps.Pages))
	}
	return append(descs, Finish())
}

func RegisterAll(reg output.ActionRegistry, deps Deps) error {
	for _, desc := range Catalog(deps) {
		if err := reg.Register(desc); err != nil {
			return err
		}
	}
	return nil
}
