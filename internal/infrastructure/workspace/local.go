package workspace

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
)

var _ output.WorkspacePort = (*LocalWorkspace)(nil)

const defaultInterpreter = "python3"

type Config struct {
	BasePath    string
	Interpreter string
	// Reserved maps script names that run a fixed command instead of a file.
	Reserved map[string][]string
}

func DefaultConfig(basePath string) Config {
	return Config{
		BasePath:    basePath,
		Interpreter: defaultInterpreter,
		Reserved: map[string][]string{
			"pytest": {"pytest"},
		},
	}
}

// LocalWorkspace keeps every task under <base>/<task_id> on the local disk.
type LocalWorkspace struct {
	base        string
	interpreter string
	reserved    map[string][]string
}

func NewLocalWorkspace(cfg Config) (*LocalWorkspace, error) {
	root := strings.TrimSpace(cfg.BasePath)
	if root == "" {
		return nil, fmt.Errorf("new workspace: base path is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("new workspace: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("new workspace: create base path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("new workspace: resolve base path symlinks: %w", err)
	}

	interpreter := cfg.Interpreter
	if interpreter == "" {
		interpreter = defaultInterpreter
	}
	reserved := make(map[string][]string, len(cfg.Reserved))
	for name, argv := range cfg.Reserved {
		if len(argv) > 0 {
			reserved[name] = append([]string(nil), argv...)
		}
	}

	return &LocalWorkspace{
		base:        resolved,
		interpreter: interpreter,
		reserved:    reserved,
	}, nil
}

func (w *LocalWorkspace) BasePath() string {
	return w.base
}

func (w *LocalWorkspace) taskRoot(taskID string) (string, error) {
	id := strings.TrimSpace(taskID)
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: invalid task id %q", entity.ErrSandboxViolation, taskID)
	}
	root := filepath.Join(w.base, id)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create task root: %w", err)
	}
	return root, nil
}

// Resolve maps path onto the task root. Every other method goes through it.
func (w *LocalWorkspace) Resolve(taskID, path string) (string, error) {
	root, err := w.taskRoot(taskID)
	if err != nil {
		return "", err
	}

	rel := strings.TrimLeft(filepath.ToSlash(path), "/")
	for _, segment := range strings.Split(rel, "/") {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", entity.ErrSandboxViolation, path)
		}
	}

	candidate := filepath.Join(root, filepath.FromSlash(rel))
	resolved, err := resolveExistingPrefix(candidate)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	if !hasPathPrefix(root, resolved) {
		return "", fmt.Errorf("%w: %q", entity.ErrSandboxViolation, path)
	}

	if candidate != root {
		if err := os.MkdirAll(filepath.Dir(candidate), 0o755); err != nil {
			return "", fmt.Errorf("create parent of %q: %w", path, err)
		}
	}
	return candidate, nil
}

func (w *LocalWorkspace) Read(taskID, path string) ([]byte, error) {
	abs, err := w.Resolve(taskID, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: file %q", entity.ErrNotFound, path)
	}
	return data, err
}

func (w *LocalWorkspace) Write(taskID, path string, data []byte) error {
	abs, err := w.Resolve(taskID, path)
	if err != nil {
		return err
	}
	return os.WriteFile(abs, data, 0o644)
}

func (w *LocalWorkspace) Delete(taskID, path string, directory, recursive bool) error {
	abs, err := w.Resolve(taskID, path)
	if err != nil {
		return err
	}
	if directory && recursive {
		return os.RemoveAll(abs)
	}
	err = os.Remove(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", entity.ErrNotFound, path)
	}
	return err
}

func (w *LocalWorkspace) Exists(taskID, path string) (bool, error) {
	abs, err := w.Resolve(taskID, path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// List returns the entries of a directory relative to the task root. A
// missing path or a regular file yields an empty list.
func (w *LocalWorkspace) List(taskID, path string) ([]string, error) {
	abs, err := w.Resolve(taskID, path)
	if err != nil {
		return nil, err
	}
	root, _ := w.taskRoot(taskID)

	entries, err := os.ReadDir(abs)
	if err != nil {
		return []string{}, nil
	}
	result := make([]string, 0, len(entries))
	for _, e := range entries {
		rel, err := filepath.Rel(root, filepath.Join(abs, e.Name()))
		if err != nil {
			return nil, err
		}
		result = append(result, filepath.ToSlash(rel))
	}
	return result, nil
}

func (w *LocalWorkspace) Files(taskID string) ([]string, error) {
	root, err := w.taskRoot(taskID)
	if err != nil {
		return nil, err
	}

	var files []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk task %q: %w", taskID, err)
	}
	sort.Strings(files)
	return files, nil
}

// Execute runs a script (or a reserved command) with the task root as its
// working directory. A non-zero exit is reported through ExecResult, not as an
// error. There is no internal timeout; ctx carries the caller's policy.
func (w *LocalWorkspace) Execute(ctx context.Context, taskID, script, stdin string) (output.ExecResult, error) {
	root, err := w.taskRoot(taskID)
	if err != nil {
		return output.ExecResult{}, err
	}

	var argv []string
	if reserved, ok := w.reserved[script]; ok {
		argv = reserved
	} else {
		abs, err := w.Resolve(taskID, script)
		if err != nil {
			return output.ExecResult{}, err
		}
		info, err := os.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			return output.ExecResult{}, fmt.Errorf("%w: script %q", entity.ErrNotFound, script)
		}
		argv = []string{w.interpreter, abs}
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if lines, ok := parseStdin(stdin); ok {
		cmd.Stdin = strings.NewReader(strings.Join(lines, "\n"))
	}

	err = cmd.Run()
	result := output.ExecResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return result, nil
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	case errors.Is(err, exec.ErrNotFound):
		return result, fmt.Errorf("%w: interpreter %q", entity.ErrNotFound, argv[0])
	default:
		return result, fmt.Errorf("run %q: %w", script, err)
	}
}

// parseStdin accepts a JSON array and turns each element into one input line.
// Anything else means no stdin.
func parseStdin(data string) ([]string, bool) {
	if strings.TrimSpace(data) == "" {
		return nil, false
	}
	var items []any
	if err := json.Unmarshal([]byte(data), &items); err != nil || len(items) == 0 {
		return nil, false
	}
	lines := make([]string, len(items))
	for i, item := range items {
		if s, ok := item.(string); ok {
			lines[i] = s
			continue
		}
		raw, _ := json.Marshal(item)
		lines[i] = string(raw)
	}
	return lines, true
}

// maxSymlinkHops bounds how many dangling links are followed while resolving.
const maxSymlinkHops = 40

func resolveExistingPrefix(path string) (string, error) {
	return resolvePrefix(path, 0)
}

// resolvePrefix evaluates the longest existing prefix of path. A dangling
// symlink on the way is followed through its target so it cannot point
// outside the task root unnoticed.
func resolvePrefix(path string, hops int) (string, error) {
	if hops > maxSymlinkHops {
		return "", fmt.Errorf("too many symlinks in %q", path)
	}
	current := path
	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			rel, relErr := filepath.Rel(current, path)
			if relErr != nil {
				return "", relErr
			}
			return filepath.Clean(filepath.Join(resolved, rel)), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if info, lstatErr := os.Lstat(current); lstatErr == nil && info.Mode()&fs.ModeSymlink != 0 {
			target, readErr := os.Readlink(current)
			if readErr != nil {
				return "", readErr
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(current), target)
			}
			rel, relErr := filepath.Rel(current, path)
			if relErr != nil {
				return "", relErr
			}
			return resolvePrefix(filepath.Join(target, rel), hops+1)
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return filepath.Clean(path), nil
}

func hasPathPrefix(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
