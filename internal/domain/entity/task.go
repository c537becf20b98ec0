package entity

import "time"

type StepStatus string

const (
	StepStatusCreated   StepStatus = "created"
	StepStatusRunning   StepStatus = "running"
	StepStatusCompleted StepStatus = "completed"
)

func (s StepStatus) rank() int {
	switch s {
	case StepStatusCreated:
		return 0
	case StepStatusRunning:
		return 1
	case StepStatusCompleted:
		return 2
	}
	return -1
}

// CanTransition reports whether a step may move from s to next.
// Statuses only move forward; staying in place is allowed.
func (s StepStatus) CanTransition(next StepStatus) bool {
	if next.rank() < 0 {
		return false
	}
	return next.rank() >= s.rank()
}

type Task struct {
	ID              string         `json:"task_id"`
	Input           string         `json:"input"`
	AdditionalInput map[string]any `json:"additional_input,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

type TaskRequest struct {
	Input           string         `json:"input"`
	AdditionalInput map[string]any `json:"additional_input,omitempty"`
}

type Step struct {
	ID               string        `json:"step_id"`
	TaskID           string        `json:"task_id"`
	Name             string        `json:"name"`
	Input            string        `json:"input"`
	Status           StepStatus    `json:"status"`
	Output           string        `json:"output"`
	IsLast           bool          `json:"is_last"`
	AdditionalInput  *Continuation `json:"additional_input,omitempty"`
	AdditionalOutput *Continuation `json:"additional_output,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Done reports whether the step terminates its task.
func (s *Step) Done() bool {
	return s != nil && s.IsLast && s.Status == StepStatusCompleted
}

// StepRequest carries caller-supplied input for one cycle. An empty Input
// continues the task's active step.
type StepRequest struct {
	Name  string `json:"name,omitempty"`
	Input string `json:"input,omitempty"`
}

// StepUpdate lists the fields to change on a step; nil fields are left as is.
type StepUpdate struct {
	Input            *string
	Status           *StepStatus
	Output           *string
	AdditionalOutput *Continuation
}

type Artifact struct {
	ID           string    `json:"artifact_id"`
	TaskID       string    `json:"task_id"`
	FileName     string    `json:"file_name"`
	RelativePath string    `json:"relative_path"`
	AgentCreated bool      `json:"agent_created"`
	StepID       string    `json:"step_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Pagination struct {
	TotalItems  int `json:"total_items"`
	TotalPages  int `json:"total_pages"`
	CurrentPage int `json:"current_page"`
	PageSize    int `json:"page_size"`
}

// Paginate computes the bounds of page (1-based) over total items.
func Paginate(total, page, perPage int) (Pagination, int, int) {
	if perPage <= 0 {
		perPage = 10
	}
	if page <= 0 {
		page = 1
	}
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	// Pages past the end map to an empty window without multiplying.
	start := total
	if page <= pages {
		start = (page - 1) * perPage
	}
	end := total
	if perPage < total-start {
		end = start + perPage
	}
	return Pagination{
		TotalItems:  total,
		TotalPages:  pages,
		CurrentPage: page,
		PageSize:    perPage,
	}, start, end
}
