package entity

import "errors"

var (
	ErrSandboxViolation    = errors.New("path escapes task sandbox")
	ErrNotFound            = errors.New("not found")
	ErrUnknownAction       = errors.New("unknown action")
	ErrInvalidArgument     = errors.New("invalid action argument")
	ErrDuplicateAction     = errors.New("action already registered")
	ErrDecode              = errors.New("model answer is not a valid decision")
	ErrInconsistentState   = errors.New("task has no active step")
	ErrTaskFinished        = errors.New("task already finished")
	ErrStepBudgetExhausted = errors.New("step budget exhausted")
	ErrStatusRegression    = errors.New("step status cannot move backwards")
)
