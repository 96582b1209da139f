// Package runner wires a model, an environment and an agent together, runs
// one task, and records the outcome as a trajectory.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spachava753/coderun/internal/agent"
	"github.com/spachava753/coderun/internal/config"
	"github.com/spachava753/coderun/internal/environment"
	"github.com/spachava753/coderun/internal/llm"
	"github.com/spachava753/coderun/internal/models"
	"github.com/spachava753/coderun/internal/trajectory"
)

// ModelFactory creates the model for a run.
type ModelFactory func(cfg models.ModelConfig) (agent.Model, error)

// EnvironmentFactory creates the environment for a run.
type EnvironmentFactory func(ctx context.Context, cfg models.EnvironmentConfig) (agent.Environment, error)

// AgentFactory creates the agent for a run.
type AgentFactory func(cfg models.AgentConfig, model agent.Model, env agent.Environment) (agent.Agent, error)

func defaultAgent(cfg models.AgentConfig, model agent.Model, env agent.Environment) (agent.Agent, error) {
	return agent.New(cfg, model, env), nil
}

// Option configures a Runner.
type Option func(*Runner)

// WithModelFactory replaces llm.New as the way the run's model is built.
func WithModelFactory(f ModelFactory) Option {
	return func(r *Runner) { r.newModel = f }
}

// WithEnvironmentFactory replaces environment.New as the way the run's
// environment is built.
func WithEnvironmentFactory(f EnvironmentFactory) Option {
	return func(r *Runner) { r.newEnv = f }
}

// WithAgentFactory replaces the default non-interactive agent.
func WithAgentFactory(f AgentFactory) Option {
	return func(r *Runner) { r.newAgent = f }
}

// WithOutputPath sets where the trajectory is written. An empty path disables
// recording.
func WithOutputPath(path string) Option {
	return func(r *Runner) { r.outputPath = path }
}

// WithTrajectoryOptions adds options to every trajectory the runner saves,
// such as extension fields or a printer.
func WithTrajectoryOptions(opts ...trajectory.Option) Option {
	return func(r *Runner) { r.trajOpts = append(r.trajOpts, opts...) }
}

// Runner executes one task per Run call.
type Runner struct {
	cfg        models.RunConfig
	newModel   ModelFactory
	newEnv     EnvironmentFactory
	newAgent   AgentFactory
	outputPath string
	trajOpts   []trajectory.Option
}

// Outcome is what a run recorded.
type Outcome struct {
	ExitStatus string
	Result     string
	ExtraInfo  map[string]any

	// Agent is nil if construction failed.
	Agent agent.Agent

	// Err is the failure of the run, if any. Agent failures are recorded
	// here and not returned from Run.
	Err error
}

func (o *Outcome) fail(err error) {
	o.Err = err
	o.ExitStatus = ErrorKind(err)
	o.Result = err.Error()
	o.ExtraInfo = map[string]any{"traceback": Traceback(err)}
}

// New validates cfg and creates a runner. A config without a model name fails
// with config.ErrNoModelName.
func New(cfg models.RunConfig, opts ...Option) (*Runner, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:      cfg,
		newModel: llm.New,
		newEnv:   environment.New,
		newAgent: defaultAgent,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run builds the model, environment and agent, then runs task. The trajectory
// is recorded however the run ends: on completion, on error, on panic and on
// cancellation. An agent that fails or panics is recorded with the error's
// kind as exit status, and Run still returns nil. Construction failures and
// failures to write the trajectory are returned.
func (r *Runner) Run(ctx context.Context, task string) (out *Outcome, err error) {
	out = &Outcome{}
	var env agent.Environment

	defer func() {
		if p := recover(); p != nil {
			perr := newPanicError(p)
			slog.Error("agent run panicked", "panic", p)
			out.fail(perr)
			if out.Agent == nil {
				err = perr
			}
		}

		if r.outputPath != "" {
			if serr := r.record(out); serr != nil {
				err = errors.Join(err, fmt.Errorf("saving trajectory: %w", serr))
			}
		}

		if c, ok := env.(environment.Cleaner); ok {
			if cerr := c.Cleanup(context.WithoutCancel(ctx)); cerr != nil {
				slog.Warn("cleaning up environment", "error", cerr)
			}
		}
	}()

	model, err := r.newModel(r.cfg.Model)
	if err != nil {
		err = fmt.Errorf("creating model: %w", err)
		out.fail(err)
		return out, err
	}

	env, err = r.newEnv(ctx, r.cfg.Environment)
	if err != nil {
		err = fmt.Errorf("creating environment: %w", err)
		out.fail(err)
		return out, err
	}

	a, err := r.newAgent(r.cfg.Agent, model, env)
	if err != nil {
		err = fmt.Errorf("creating agent: %w", err)
		out.fail(err)
		return out, err
	}
	out.Agent = a

	slog.Debug("running agent",
		"model", r.cfg.Model.ModelName,
		"environment", r.cfg.Environment.EnvironmentClass)

	exitStatus, result, runErr := a.Run(ctx, task)
	if runErr != nil {
		slog.Error("agent run failed", "error", runErr)
		out.fail(runErr)
		return out, nil
	}

	out.ExitStatus, out.Result = exitStatus, result
	slog.Debug("agent finished", "exit_status", exitStatus)
	return out, nil
}

func (r *Runner) record(out *Outcome) error {
	opts := []trajectory.Option{
		trajectory.WithExitStatus(out.ExitStatus),
		trajectory.WithResult(out.Result),
	}
	if out.ExtraInfo != nil {
		opts = append(opts, trajectory.WithExtraInfo(out.ExtraInfo))
	}
	opts = append(opts, r.trajOpts...)
	return trajectory.Save(out.Agent, r.outputPath, opts...)
}
