package cli

import (
	"context"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/spachava753/coderun/internal/agent"
	"github.com/spachava753/coderun/internal/config"
	"github.com/spachava753/coderun/internal/models"
	"github.com/spachava753/coderun/internal/prompt"
	"github.com/spachava753/coderun/internal/runner"
	"github.com/spachava753/coderun/internal/task"
	"github.com/spachava753/coderun/internal/trajectory"
)

type runOptions struct {
	model            string
	task             string
	taskFile         string
	yolo             bool
	costLimit        float64
	config           string
	output           string
	environmentClass string
	exitImmediately  bool
	logLevel         string
}

// console is the operator terminal of an interactive run.
type console interface {
	agent.Prompter
	ReadTask(ctx context.Context) (string, error)
	Printf(format string, args ...any)
	Close() error
}

// deps are the pieces of a run that tests replace.
type deps struct {
	newConsole func() (console, error)
	runnerOpts []runner.Option
}

func defaultDeps() deps {
	return deps{
		newConsole: func() (console, error) {
			c, err := prompt.New(config.GlobalDir())
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

func runTask(cmd *cobra.Command, d deps, o *runOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := config.LoadDotEnv(config.GlobalEnvPath()); err != nil {
		return err
	}

	cfg, source, err := config.LoadRunConfig(o.config)
	if err != nil {
		return err
	}

	var t *models.Task
	if o.taskFile != "" {
		t, err = task.NewLoader("").Load(ctx, o.taskFile)
		if err != nil {
			return err
		}
		taskDir := ""
		if t.FS != nil {
			taskDir = t.Path
		}
		cfg = config.ApplyTask(cfg, t.Config, taskDir)
	}

	overrides := config.Overrides{
		ModelName:        o.model,
		Yolo:             o.yolo,
		ExitImmediately:  o.exitImmediately,
		EnvironmentClass: o.environmentClass,
		LogLevel:         o.logLevel,
	}
	if cmd.Flags().Changed("cost-limit") {
		overrides.CostLimit = &o.costLimit
	}
	cfg, err = config.Resolve(cfg, overrides)
	if err != nil {
		return err
	}

	if err := setupLogging(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
		return err
	}

	con, err := d.newConsole()
	if err != nil {
		return err
	}
	defer con.Close()

	con.Printf("Loading agent config from '%s'", source)

	taskText := o.task
	if t != nil {
		taskText = t.Text
	}
	if taskText == "" {
		taskText, err = con.ReadTask(ctx)
		if err != nil {
			return err
		}
		con.Printf("Got that, thanks!")
	}

	trajOpts := []trajectory.Option{
		trajectory.WithPrinter(func(msg string) { con.Printf("%s", msg) }),
	}
	if t != nil {
		trajOpts = append(trajOpts, trajectory.WithField("task_source", t.Source()))
	}

	opts := []runner.Option{
		runner.WithOutputPath(o.output),
		runner.WithTrajectoryOptions(trajOpts...),
		runner.WithAgentFactory(func(cfg models.AgentConfig, model agent.Model, env agent.Environment) (agent.Agent, error) {
			a, err := agent.NewInteractive(cfg, model, env, con)
			if err != nil {
				return nil, err
			}
			return a, nil
		}),
	}
	opts = append(opts, d.runnerOpts...)

	r, err := runner.New(cfg, opts...)
	if err != nil {
		return err
	}

	out, err := r.Run(ctx, taskText)
	if err != nil {
		return err
	}

	// Agent failures are recorded in the trajectory, not returned
	if out.Err != nil {
		slog.Error("agent run failed", "exit_status", out.ExitStatus, "error", out.Err)
	}
	slog.Info("run finished", "exit_status", out.ExitStatus)
	return nil
}

func setupLogging(w io.Writer, level string) error {
	lvl, err := config.ParseLogLevel(level)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
	return nil
}
