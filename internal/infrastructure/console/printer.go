package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.StepReporter = (*StepPrinter)(nil)

// StepPrinter writes drive progress to a terminal.
type StepPrinter struct {
	out io.Writer
}

func NewStepPrinter() *StepPrinter {
	return NewStepPrinterTo(os.Stdout)
}

func NewStepPrinterTo(w io.Writer) *StepPrinter {
	return &StepPrinter{out: w}
}

func (p *StepPrinter) ShowTask(_ context.Context, task *entity.Task) {
	bold := color.New(color.Bold)
	bold.Fprintf(p.out, "Task %s\n", task.ID)

	dim := color.New(color.Faint)
	dim.Fprintf(p.out, "   %s\n", truncate(task.Input, 200))
}

func (p *StepPrinter) ShowStep(_ context.Context, iteration, maxSteps int, step *entity.Step) {
	cyan := color.New(color.FgCyan, color.Bold)
	if maxSteps > 0 {
		cyan.Fprintf(p.out, "\n━━━ Step %d/%d ━━━\n", iteration, maxSteps)
	} else {
		cyan.Fprintf(p.out, "\n━━━ Step %d ━━━\n", iteration)
	}

	if step.Status != entity.StepStatusCompleted {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(p.out, "… %s is still %s, retrying\n", step.Name, step.Status)
		return
	}

	record, summary, ok := lastAction(step)
	if !ok {
		return
	}

	icon, name := actionDisplay(record.Ability.Name)
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintf(p.out, "%s %s\n", icon, name)

	if args := formatArgs(record.Ability); args != "" {
		dim := color.New(color.Faint)
		dim.Fprintf(p.out, "   %s\n", args)
	}

	if isFailure(record.Output) {
		red := color.New(color.FgRed)
		red.Fprint(p.out, "❌ ")
		dim := color.New(color.Faint)
		dim.Fprintln(p.out, truncate(record.Output, 300))
	} else if record.Output != "" {
		green := color.New(color.FgGreen)
		green.Fprintf(p.out, "✓ %s\n", truncate(record.Output, 150))
	}

	if summary != "" {
		blue := color.New(color.FgBlue)
		blue.Fprint(p.out, "💭 ")
		fmt.Fprintln(p.out, truncate(summary, 300))
	}
}

func (p *StepPrinter) ShowFinished(_ context.Context, step *entity.Step) {
	green := color.New(color.FgGreen, color.Bold)
	green.Fprintf(p.out, "\n✅ %s\n", step.Output)
}

// lastAction returns the action the step appended to the history.
func lastAction(step *entity.Step) (entity.ActionRecord, string, bool) {
	c := step.AdditionalOutput
	if c == nil || len(c.Actions) == 0 {
		return entity.ActionRecord{}, "", false
	}
	var summary string
	if len(c.Outputs) > 0 {
		summary = c.Outputs[len(c.Outputs)-1]
	}
	return c.Actions[len(c.Actions)-1], summary, true
}

func actionDisplay(name string) (string, string) {
	displays := map[string][2]string{
		"list_files":          {"📂", "List files"},
		"read_file":           {"📄", "Read file"},
		"write_file":          {"✏️", "Write file"},
		"execute_python_file": {"🐍", "Run Python"},
		"read_webpage":        {"🌐", "Read webpage"},
		"finish":              {"🏁", "Finish"},
	}

	if display, ok := displays[name]; ok {
		return display[0], display[1]
	}
	if name == "" {
		return "❓", "(no ability)"
	}
	return "🔧", name
}

func formatArgs(a entity.Ability) string {
	str := func(key string) string {
		s, _ := a.Args[key].(string)
		return s
	}

	switch a.Name {
	case "list_files":
		return fmt.Sprintf("Path: %s", str("path"))
	case "read_file", "execute_python_file":
		return fmt.Sprintf("File: %s", str("file_path"))
	case "write_file":
		return fmt.Sprintf("File: %s (%d bytes)", str("file_path"), len(str("data")))
	case "read_webpage":
		return fmt.Sprintf("URL: %s", str("url"))
	case "finish":
		return truncate(str("reason"), 80)
	}
	return ""
}

func isFailure(out string) bool {
	return strings.HasPrefix(out, "You've used an invalid ability name") ||
		strings.Contains(out, "invalid action argument") ||
		strings.Contains(out, "path escapes task sandbox") ||
		strings.Contains(out, "panicked:")
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
