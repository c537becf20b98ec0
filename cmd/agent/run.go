package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"task-agent/internal/application/port/input"
	"task-agent/internal/di"
	"task-agent/internal/domain/entity"
	"task-agent/internal/infrastructure/console"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		maxSteps int
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Run one task to completion in the terminal",
		Long: `Run one task to completion. The task text is taken from the arguments,
or read from stdin when none are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if !cmd.Flags().Changed("max-steps") {
				maxSteps = cfg.MaxSteps
			}

			task := strings.TrimSpace(strings.Join(args, " "))
			if task == "" {
				var err error
				if task, err = readTask(cmd); err != nil {
					return err
				}
			}
			if task == "" {
				return errors.New("task is empty")
			}
			cfg.LogName = task

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runTask(ctx, cfg, task, maxSteps)
		},
	}

	cmd.Flags().IntVar(&maxSteps, "max-steps", 30, "maximum number of cycles, 0 for no limit")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "overall time limit")
	return cmd
}

func readTask(cmd *cobra.Command) (string, error) {
	fmt.Fprintln(cmd.OutOrStdout(), "\nEnter a task for the agent:")
	reader := bufio.NewReader(cmd.InOrStdin())
	task, err := reader.ReadString('\n')
	if err != nil && task == "" {
		return "", fmt.Errorf("read task: %w", err)
	}
	return strings.TrimSpace(task), nil
}

func runTask(ctx context.Context, cfg di.Config, text string, maxSteps int) error {
	container, err := di.NewContainer(ctx, cfg, nil)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer container.Close()

	task, err := container.Controller.Create(ctx, entity.TaskRequest{Input: text})
	if err != nil {
		return err
	}

	result, err := container.Controller.Drive(ctx, task.ID, input.DriveOptions{
		MaxSteps: maxSteps,
		Reporter: console.NewStepPrinter(),
	})
	if err != nil {
		container.Logger.Error("Task failed", "task_id", task.ID, "error", err)
		return err
	}

	container.Logger.Info("Task completed", "task_id", task.ID, "cycles", result.Cycles)
	fmt.Fprintf(os.Stdout, "\nWorkspace: %s/%s\n", cfg.WorkspacePath, task.ID)
	return nil
}
