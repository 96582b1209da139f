// Package cli implements the coderun command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// DefaultOutput is where the trajectory of a run is written unless -o says
// otherwise.
const DefaultOutput = "last_run.traj.json"

// Execute runs the command line with the process arguments.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// NewRootCmd builds the command tree. The root command runs a task, the
// same as "coderun run".
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:   "coderun",
		Short: "Run a coding agent on one task and record its trajectory",
		Long: `coderun lets a language model solve a task by running bash commands in a
local shell, a docker container or a Modal sandbox. Every run is recorded as a
JSON trajectory holding the conversation, the exit status and the model's spend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the agent on a task",
		Example: `  # Prompt for the task and confirm each command
  coderun run -m claude-sonnet-4-5

  # Run unattended on a task directory inside docker
  coderun run -m gpt-4.1 -f ./tasks/fix-tests -y --exit-immediately --environment-class docker`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
	}

	for _, cmd := range []*cobra.Command{root, run} {
		opts := &runOptions{}
		addRunFlags(cmd, opts)
		cmd.RunE = func(cmd *cobra.Command, args []string) error {
			return runTask(cmd, d, opts)
		}
	}

	root.AddCommand(run)
	return root
}

func addRunFlags(cmd *cobra.Command, o *runOptions) {
	f := cmd.Flags()
	f.StringVarP(&o.model, "model", "m", "", "model to use (default $MODEL_NAME or the config file)")
	f.StringVarP(&o.task, "task", "t", "", "task to solve; prompted for when empty")
	f.StringVarP(&o.taskFile, "task-file", "f", "", "read the task from a file, a task directory, or git+<url>[//<path>][@<commit>]")
	f.BoolVarP(&o.yolo, "yolo", "y", false, "run commands without asking for confirmation")
	f.Float64VarP(&o.costLimit, "cost-limit", "l", 0, "cost limit in USD, 0 disables")
	f.StringVarP(&o.config, "config", "c", "", "agent config file (default $CODERUN_CONFIG_PATH or builtin default.yaml)")
	f.StringVarP(&o.output, "output", "o", DefaultOutput, "trajectory output path, empty disables")
	f.StringVar(&o.environmentClass, "environment-class", "", "environment to run commands in: local, docker or modal")
	f.BoolVar(&o.exitImmediately, "exit-immediately", false, "accept the agent's submission without asking")
	f.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.MarkFlagsMutuallyExclusive("task", "task-file")
}
