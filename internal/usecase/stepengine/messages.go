package stepengine

import (
	"encoding/json"
	"fmt"
	"strings"

	"task-agent/internal/domain/entity"
)

const (
	systemTemplate = "system-format"
	stepTemplate   = "task-step"

	firstStepName = "First Step"
	nextStepName  = "Next Step"
	lastStepName  = "Last Step"

	finalOutput     = "The task has been completed."
	finishedInput   = "You have finished the task and achieved its goal."
	noReason        = "No reason provided"
	missingSummary  = "ERROR OCCURED"
	currentStepHint = "\n\n Your current step for this task is: "
)

const verifyInput = "The output of the previous step is: `%s`. Verify that this output matches with the goal " +
	"of the task you are given. Perform the next step if required. If an unexpected output occured, determine " +
	"if you used the right ability and if so, try selecting the right ability for the task, or fix the previous " +
	"step if an explicit error has occured. If the goal of the task is achieved, call the `finish` ability."

// finishNames end the task when the registry knows them.
var finishNames = map[string]bool{"finish": true, "none": true, "None": true, "": true}

// HistoryEntry is one replayed action as the task-step template sees it.
type HistoryEntry struct {
	Index   int
	Ability string
	Args    string
	Output  string
}

func historyView(c *entity.Continuation) []HistoryEntry {
	if c == nil {
		return []HistoryEntry{}
	}
	entries := make([]HistoryEntry, 0, len(c.Actions))
	for i, a := range c.Actions {
		args := "{}"
		if len(a.Ability.Args) > 0 {
			if raw, err := json.Marshal(a.Ability.Args); err == nil {
				args = string(raw)
			}
		}
		entries = append(entries, HistoryEntry{
			Index:   i + 1,
			Ability: a.Ability.Name,
			Args:    args,
			Output:  a.Output,
		})
	}
	return entries
}

func summaries(c *entity.Continuation) []string {
	if c == nil {
		return []string{}
	}
	return append([]string{}, c.Outputs...)
}

func invalidAbilityMessage(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "You've used an invalid ability name. Make sure you specify only a valid ability name in your output. " +
		"Remember, you only have access to the following abilities: [" + strings.Join(quoted, ", ") + "]"
}

// renderOutput turns a handler result into the text kept in history.
func renderOutput(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return strings.ToValidUTF8(string(val), "\uFFFD")
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}

func finishReason(args map[string]any) string {
	v, ok := args["reason"]
	if !ok || v == nil {
		return noReason
	}
	if s, ok := v.(string); ok {
		if s == "" {
			return noReason
		}
		return s
	}
	return fmt.Sprint(v)
}

func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
