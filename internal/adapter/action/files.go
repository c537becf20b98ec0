package action

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
)

func ListFiles() output.ActionDescriptor {
	return output.ActionDescriptor{
		Name:        "list_files",
		Description: "List files in a directory",
		Parameters: []output.ActionParam{
			{Name: "path", Type: "string", Required: true, Description: "Path to the directory"},
		},
		OutputType: "list[str]",
		Handler:    listFiles,
	}
}

func listFiles(_ context.Context, ac output.ActionContext, args map[string]any) (any, error) {
	dir, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	return ac.Workspace.List(ac.TaskID, dir)
}

func ReadFile() output.ActionDescriptor {
	return output.ActionDescriptor{
		Name:        "read_file",
		Description: "Read data from a file",
		Parameters: []output.ActionParam{
			{Name: "file_path", Type: "string", Required: true, Description: "Path to the file"},
		},
		OutputType: "bytes",
		Handler:    readFile,
	}
}

func readFile(_ context.Context, ac output.ActionContext, args map[string]any) (any, error) {
	p, err := stringArg(args, "file_path")
	if err != nil {
		return nil, err
	}
	return ac.Workspace.Read(ac.TaskID, p)
}

func WriteFile() output.ActionDescriptor {
	return output.ActionDescriptor{
		Name: "write_file",
		Description: "Write data to a file. If you need to execute a Python script, make sure to use " +
			"write_file ability at first to create the Python script.",
		Parameters: []output.ActionParam{
			{Name: "file_path", Type: "string", Required: true, Description: "Path to the file"},
			{Name: "data", Type: "string", Required: true, Description: "Data to write to the file."},
		},
		OutputType: "Artifact",
		Handler:    writeFile,
	}
}

// writeFile stores the data and records the file as an artifact of the
// current step. Models often send escaped newlines, which are unescaped.
func writeFile(ctx context.Context, ac output.ActionContext, args map[string]any) (any, error) {
	p, err := stringArg(args, "file_path")
	if err != nil {
		return nil, err
	}
	data, err := stringArg(args, "data")
	if err != nil {
		return nil, err
	}
	data = strings.ReplaceAll(data, `\n`, "\n")

	if err := ac.Workspace.Write(ac.TaskID, p, []byte(data)); err != nil {
		return nil, err
	}

	rel := strings.TrimLeft(path.Clean("/"+p), "/")
	name := path.Base(rel)

	existing, err := ac.Store.GetArtifactByFileName(ctx, ac.TaskID, name)
	switch {
	case err == nil:
		if existing.StepID == ac.StepID {
			return existing, nil
		}
		return ac.Store.UpdateArtifact(ctx, ac.TaskID, existing.ID, ac.StepID)
	case errors.Is(err, entity.ErrNotFound):
		return ac.Store.CreateArtifact(ctx, entity.Artifact{
			TaskID:       ac.TaskID,
			FileName:     name,
			RelativePath: rel,
			AgentCreated: true,
			StepID:       ac.StepID,
		})
	default:
		return nil, fmt.Errorf("lookup artifact %q: %w", name, err)
	}
}
