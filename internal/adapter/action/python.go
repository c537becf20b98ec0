package action

import (
	"context"
	"fmt"
	"time"

	"task-agent/internal/application/port/output"
)

// ExecutePythonFile runs a script from the task workspace. A positive timeout
// bounds every run.
func ExecutePythonFile(timeout time.Duration) output.ActionDescriptor {
	return output.ActionDescriptor{
		Name: "execute_python_file",
		Description: "Execute a Python script file. You should ensure that the file you want to run is " +
			"created with the correct content before attempting to run it.",
		Parameters: []output.ActionParam{
			{Name: "script_path", Type: "string", Required: true, Description: "The path to the Python script file to run"},
			{Name: "data", Type: "string", Required: false, Description: "The optional data to pass to the Python script into STDIN in the form of a JSON array string"},
		},
		OutputType: "str",
		Handler: func(ctx context.Context, ac output.ActionContext, args map[string]any) (any, error) {
			script, err := stringArg(args, "script_path")
			if err != nil {
				return nil, err
			}
			stdin, err := optionalStringArg(args, "data", "")
			if err != nil {
				return nil, err
			}

			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			res, err := ac.Workspace.Execute(ctx, ac.TaskID, script, stdin)
			if err != nil {
				return nil, err
			}
			if res.ExitCode != 0 {
				ac.Logger.Debug("Script exited with non-zero status", "task_id", ac.TaskID, "script", script, "exit_code", res.ExitCode)
			}
			return fmt.Sprintf("OUTPUT: %s\nERROR: %s", res.Stdout, res.Stderr), nil
		},
	}
}
