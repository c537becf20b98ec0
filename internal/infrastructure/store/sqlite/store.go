package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var _ output.TaskStore = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// one writer keeps sqlite from returning SQLITE_BUSY under concurrent tasks
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite %q: %w", path, err)
	}
	return s, nil
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init runs migrations using PRAGMA user_version.
func (s *Store) Init() error {
	var ver int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&ver); err != nil {
		return err
	}
	if ver >= 1 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS tasks (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  task_id TEXT NOT NULL UNIQUE,
  input TEXT NOT NULL,
  additional_input TEXT,
  created_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS steps (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  step_id TEXT NOT NULL UNIQUE,
  task_id TEXT NOT NULL REFERENCES tasks(task_id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  input TEXT NOT NULL,
  status TEXT NOT NULL,
  output TEXT NOT NULL DEFAULT '',
  is_last INTEGER NOT NULL DEFAULT 0,
  additional_input TEXT,
  additional_output TEXT,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS artifacts (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  artifact_id TEXT NOT NULL UNIQUE,
  task_id TEXT NOT NULL REFERENCES tasks(task_id) ON DELETE CASCADE,
  file_name TEXT NOT NULL,
  relative_path TEXT NOT NULL,
  agent_created INTEGER NOT NULL DEFAULT 0,
  step_id TEXT,
  created_at TEXT NOT NULL,
  UNIQUE (task_id, file_name)
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS steps_task ON steps(task_id, seq)`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1`); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Close() error {
	return s.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v)
	return t
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", entity.ErrNotFound, what)
	}
	return err
}

func (s *Store) CreateTask(ctx context.Context, req entity.TaskRequest) (*entity.Task, error) {
	extra, err := encodeJSON(req.AdditionalInput)
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	created := now()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(task_id, input, additional_input, created_at) VALUES (?, ?, ?, ?)`,
		id, req.Input, extra, created,
	); err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetTask(ctx, id)
}

func (s *Store) GetTask(ctx context.Context, taskID string) (*entity.Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, input, additional_input, created_at FROM tasks WHERE task_id = ?`, taskID)
	task, err := scanTask(row)
	if err != nil {
		return nil, notFound(err, "task "+taskID)
	}
	return task, nil
}

func (s *Store) ListTasks(ctx context.Context, page, perPage int) ([]entity.Task, entity.Pagination, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks`).Scan(&total); err != nil {
		return nil, entity.Pagination{}, err
	}
	pagination, start, end := entity.Paginate(total, page, perPage)

	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, input, additional_input, created_at FROM tasks ORDER BY seq LIMIT ? OFFSET ?`,
		end-start, start)
	if err != nil {
		return nil, entity.Pagination{}, err
	}
	defer rows.Close()

	result := []entity.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, entity.Pagination{}, err
		}
		result = append(result, *task)
	}
	return result, pagination, rows.Err()
}

func (s *Store) CreateStep(ctx context.Context, taskID string, req entity.StepRequest, isLast bool, additionalInput *entity.Continuation) (*entity.Step, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	in, err := encodeJSON(additionalInput.Clone())
	if err != nil {
		return nil, err
	}
	id := uuid.NewString()
	ts := now()
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO steps(step_id, task_id, name, input, status, is_last, additional_input, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, taskID, req.Name, req.Input, string(entity.StepStatusCreated), boolInt(isLast), in, ts, ts,
	); err != nil {
		return nil, fmt.Errorf("insert step: %w", err)
	}
	return s.GetStep(ctx, taskID, id)
}

const stepColumns = `step_id, task_id, name, input, status, output, is_last, additional_input, additional_output, created_at, updated_at`

func (s *Store) GetStep(ctx context.Context, taskID, stepID string) (*entity.Step, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE task_id = ? AND step_id = ?`, taskID, stepID)
	step, err := scanStep(row)
	if err != nil {
		return nil, notFound(err, "step "+stepID)
	}
	return step, nil
}

func (s *Store) UpdateStep(ctx context.Context, taskID, stepID string, upd entity.StepUpdate) (*entity.Step, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var current string
	if err := tx.QueryRowContext(ctx,
		`SELECT status FROM steps WHERE task_id = ? AND step_id = ?`, taskID, stepID,
	).Scan(&current); err != nil {
		return nil, notFound(err, "step "+stepID)
	}
	if upd.Status != nil && !entity.StepStatus(current).CanTransition(*upd.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", entity.ErrStatusRegression, current, *upd.Status)
	}

	sets := []string{}
	args := []any{}
	if upd.Input != nil {
		sets = append(sets, "input = ?")
		args = append(args, *upd.Input)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.Output != nil {
		sets = append(sets, "output = ?")
		args = append(args, *upd.Output)
	}
	if upd.AdditionalOutput != nil {
		out, err := encodeJSON(upd.AdditionalOutput)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "additional_output = ?")
		args = append(args, out)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now(), taskID, stepID)

	query := "UPDATE steps SET " + joinSets(sets) + " WHERE task_id = ? AND step_id = ?"
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, fmt.Errorf("update step: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.GetStep(ctx, taskID, stepID)
}

func (s *Store) ListSteps(ctx context.Context, taskID string, page, perPage int) ([]entity.Step, entity.Pagination, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, entity.Pagination{}, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM steps WHERE task_id = ?`, taskID).Scan(&total); err != nil {
		return nil, entity.Pagination{}, err
	}
	pagination, start, end := entity.Paginate(total, page, perPage)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE task_id = ? ORDER BY seq LIMIT ? OFFSET ?`,
		taskID, end-start, start)
	if err != nil {
		return nil, entity.Pagination{}, err
	}
	defer rows.Close()

	result := []entity.Step{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, entity.Pagination{}, err
		}
		result = append(result, *step)
	}
	return result, pagination, rows.Err()
}

const artifactColumns = `artifact_id, task_id, file_name, relative_path, agent_created, step_id, created_at`

// CreateArtifact returns the existing record when the task already has an
// artifact with the same file name.
func (s *Store) CreateArtifact(ctx context.Context, artifact entity.Artifact) (*entity.Artifact, error) {
	if _, err := s.GetTask(ctx, artifact.TaskID); err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO artifacts(artifact_id, task_id, file_name, relative_path, agent_created, step_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id, file_name) DO NOTHING`,
		uuid.NewString(), artifact.TaskID, artifact.FileName, artifact.RelativePath,
		boolInt(artifact.AgentCreated), nullString(artifact.StepID), now(),
	); err != nil {
		return nil, fmt.Errorf("insert artifact: %w", err)
	}
	return s.GetArtifactByFileName(ctx, artifact.TaskID, artifact.FileName)
}

func (s *Store) GetArtifact(ctx context.Context, taskID, artifactID string) (*entity.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE task_id = ? AND artifact_id = ?`, taskID, artifactID)
	a, err := scanArtifact(row)
	if err != nil {
		return nil, notFound(err, "artifact "+artifactID)
	}
	return a, nil
}

func (s *Store) GetArtifactByFileName(ctx context.Context, taskID, fileName string) (*entity.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE task_id = ? AND file_name = ?`, taskID, fileName)
	a, err := scanArtifact(row)
	if err != nil {
		return nil, notFound(err, "artifact "+fileName)
	}
	return a, nil
}

func (s *Store) UpdateArtifact(ctx context.Context, taskID, artifactID, stepID string) (*entity.Artifact, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET step_id = ? WHERE task_id = ? AND artifact_id = ?`,
		nullString(stepID), taskID, artifactID)
	if err != nil {
		return nil, fmt.Errorf("update artifact: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: artifact %q", entity.ErrNotFound, artifactID)
	}
	return s.GetArtifact(ctx, taskID, artifactID)
}

func (s *Store) ListArtifacts(ctx context.Context, taskID string, page, perPage int) ([]entity.Artifact, entity.Pagination, error) {
	if _, err := s.GetTask(ctx, taskID); err != nil {
		return nil, entity.Pagination{}, err
	}
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts WHERE task_id = ?`, taskID).Scan(&total); err != nil {
		return nil, entity.Pagination{}, err
	}
	pagination, start, end := entity.Paginate(total, page, perPage)

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE task_id = ? ORDER BY seq LIMIT ? OFFSET ?`,
		taskID, end-start, start)
	if err != nil {
		return nil, entity.Pagination{}, err
	}
	defer rows.Close()

	result := []entity.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, entity.Pagination{}, err
		}
		result = append(result, *a)
	}
	return result, pagination, rows.Err()
}
