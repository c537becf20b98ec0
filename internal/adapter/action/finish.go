package action

import (
	"context"

	"task-agent/internal/application/port/output"
)

const FinishName = "finish"

func Finish() output.ActionDescriptor {
	return output.ActionDescriptor{
		Name: FinishName,
		Description: "Use this to shut down once you have accomplished all of your goals, or when there are " +
			"insurmountable problems that make it impossible for you to finish your task. Make sure to specify " +
			"the 'reason' parameter to explain why you are invoking this action. Do not call this ability if you " +
			"have not achieved your final goal of a given task!",
		Parameters: []output.ActionParam{
			{Name: "reason", Type: "string", Required: false, Description: "A summary to the user of how the goals were accomplished"},
		},
		OutputType: "None",
		Handler: func(_ context.Context, ac output.ActionContext, args map[string]any) (any, error) {
			reason, err := optionalStringArg(args, "reason", "No reason provided")
			if err != nil {
				return nil, err
			}
			ac.Logger.Info("Shutting down", "task_id", ac.TaskID, "reason", reason)
			return reason, nil
		},
	}
}
