package main

import (
	"fmt"
	"os"

	"task-agent/internal/di"
	"task-agent/internal/infrastructure/env"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agent",
		Short:         "Autonomous task agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newServeCmd())
	return root
}

func loadConfig() di.Config {
	return di.LoadConfig(env.NewEnvService())
}
