package output

import "context"

type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// WorkspacePort confines every file operation to a per-task root.
type WorkspacePort interface {
	Resolve(taskID, path string) (string, error)
	Read(taskID, path string) ([]byte, error)
	Write(taskID, path string, data []byte) error
	Delete(taskID, path string, directory, recursive bool) error
	Exists(taskID, path string) (bool, error)
	List(taskID, path string) ([]string, error)
	Files(taskID string) ([]string, error)
	Execute(ctx context.Context, taskID, script, stdin string) (ExecResult, error)
}
