package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"task-agent/internal/domain/entity"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*entity.Task, error) {
	var (
		task    entity.Task
		extra   sql.NullString
		created string
	)
	if err := row.Scan(&task.ID, &task.Input, &extra, &created); err != nil {
		return nil, err
	}
	if extra.Valid && extra.String != "" {
		if err := json.Unmarshal([]byte(extra.String), &task.AdditionalInput); err != nil {
			return nil, fmt.Errorf("decode task additional_input: %w", err)
		}
	}
	task.CreatedAt = parseTime(created)
	return &task, nil
}

func scanStep(row scanner) (*entity.Step, error) {
	var (
		step             entity.Step
		status           string
		isLast           int
		in, out          sql.NullString
		created, updated string
	)
	if err := row.Scan(&step.ID, &step.TaskID, &step.Name, &step.Input, &status, &step.Output,
		&isLast, &in, &out, &created, &updated); err != nil {
		return nil, err
	}
	step.Status = entity.StepStatus(status)
	step.IsLast = isLast != 0
	var err error
	if step.AdditionalInput, err = decodeContinuation(in); err != nil {
		return nil, fmt.Errorf("decode step additional_input: %w", err)
	}
	if step.AdditionalOutput, err = decodeContinuation(out); err != nil {
		return nil, fmt.Errorf("decode step additional_output: %w", err)
	}
	step.CreatedAt = parseTime(created)
	step.UpdatedAt = parseTime(updated)
	return &step, nil
}

func scanArtifact(row scanner) (*entity.Artifact, error) {
	var (
		a       entity.Artifact
		agent   int
		stepID  sql.NullString
		created string
	)
	if err := row.Scan(&a.ID, &a.TaskID, &a.FileName, &a.RelativePath, &agent, &stepID, &created); err != nil {
		return nil, err
	}
	a.AgentCreated = agent != 0
	a.StepID = stepID.String
	a.CreatedAt = parseTime(created)
	return &a, nil
}

func decodeContinuation(v sql.NullString) (*entity.Continuation, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	var c entity.Continuation
	if err := json.Unmarshal([]byte(v.String), &c); err != nil {
		return nil, err
	}
	if c.Actions == nil {
		c.Actions = []entity.ActionRecord{}
	}
	if c.Outputs == nil {
		c.Outputs = []string{}
	}
	return &c, nil
}

func encodeJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode json column: %w", err)
	}
	if string(raw) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func joinSets(sets []string) string {
	return strings.Join(sets, ", ")
}
