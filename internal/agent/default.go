package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/spachava753/coderun/internal/models"
)

// SubmitMarker must be the first line of a command's output for the agent to
// treat the run as finished. The remaining lines are the submission.
const SubmitMarker = "COMPLETE_TASK_AND_SUBMIT_FINAL_OUTPUT"

var actionRegex = regexp.MustCompile("(?s)```bash\\s*\\n(.*?)\\n```")

// hooks let wrappers such as InteractiveAgent intercept the loop.
type hooks struct {
	query       func(ctx context.Context) (models.Response, bool, error)
	execute     func(ctx context.Context, action string) error
	onTerminate func(ctx context.Context, err *TerminatingError) error
	message     func(msg models.Message)
}

// DefaultAgent asks the model for one bash command per step, runs it, and
// feeds the output back until the model submits or a limit is hit.
type DefaultAgent struct {
	cfg      models.AgentConfig
	model    Model
	env      Environment
	messages []models.Message
	vars     map[string]any
	hooks    hooks
}

// New creates a non-interactive agent.
func New(cfg models.AgentConfig, model Model, env Environment) *DefaultAgent {
	return &DefaultAgent{
		cfg:   cfg,
		model: model,
		env:   env,
	}
}

func (a *DefaultAgent) Model() Model     { return a.model }
func (a *DefaultAgent) Env() Environment { return a.env }
func (a *DefaultAgent) Config() any      { return a.cfg }

// Messages returns a copy of the conversation.
func (a *DefaultAgent) Messages() []models.Message {
	return slices.Clone(a.messages)
}

// Run starts a fresh conversation for task and loops until a terminating
// condition. Model and environment failures are returned as errors.
func (a *DefaultAgent) Run(ctx context.Context, task string) (string, string, error) {
	a.vars = map[string]any{"task": task}
	a.messages = nil

	system, err := a.render(a.cfg.SystemTemplate, nil)
	if err != nil {
		return "", "", fmt.Errorf("rendering system template: %w", err)
	}
	a.addMessage("system", system)

	instance, err := a.render(a.cfg.InstanceTemplate, nil)
	if err != nil {
		return "", "", fmt.Errorf("rendering instance template: %w", err)
	}
	a.addMessage("user", instance)

	for {
		if err := ctx.Err(); err != nil {
			return "", "", err
		}

		err := a.Step(ctx)
		if err == nil {
			continue
		}

		var term *TerminatingError
		if errors.As(err, &term) && a.hooks.onTerminate != nil {
			err = a.hooks.onTerminate(ctx, term)
		}

		var nonTerm *NonTerminatingError
		switch {
		case errors.As(err, &nonTerm):
			slog.Debug("recoverable step error", "kind", nonTerm.Kind())
			a.addMessage("user", nonTerm.Message)
		case errors.As(err, &term):
			a.addMessage("user", term.Message)
			return term.Kind(), term.Message, nil
		default:
			return "", "", err
		}
	}
}

// Step queries the model once and acts on its reply.
func (a *DefaultAgent) Step(ctx context.Context) error {
	resp, err := a.query(ctx)
	if err != nil {
		return err
	}
	return a.observe(ctx, resp)
}

func (a *DefaultAgent) query(ctx context.Context) (models.Response, error) {
	if a.limitsExceeded() {
		return models.Response{}, limitsExceeded()
	}

	if a.hooks.query != nil {
		resp, handled, err := a.hooks.query(ctx)
		if err != nil {
			return models.Response{}, err
		}
		if handled {
			a.addMessage("assistant", resp.Content)
			return resp, nil
		}
	}

	resp, err := a.model.Query(ctx, a.Messages())
	if err != nil {
		return models.Response{}, fmt.Errorf("querying model: %w", err)
	}
	a.appendMessage(models.Message{
		Role:    "assistant",
		Content: resp.Content,
		Extra:   resp.Extra,
	})
	return resp, nil
}

func (a *DefaultAgent) limitsExceeded() bool {
	if a.cfg.StepLimit > 0 && a.model.NCalls() >= a.cfg.StepLimit {
		return true
	}
	return a.cfg.CostLimit > 0 && a.model.Cost() >= a.cfg.CostLimit
}

func (a *DefaultAgent) observe(ctx context.Context, resp models.Response) error {
	action, err := a.parseAction(resp.Content)
	if err != nil {
		return err
	}

	result, err := a.execute(ctx, action)
	if err != nil {
		return err
	}

	observation, err := a.render(a.cfg.ActionObservationTemplate, map[string]any{"output": result.Vars()})
	if err != nil {
		return fmt.Errorf("rendering observation: %w", err)
	}
	a.addMessage("user", observation)
	return nil
}

// parseAction extracts the single bash block from a model reply.
func (a *DefaultAgent) parseAction(content string) (string, error) {
	matches := actionRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 1 {
		return strings.TrimSpace(matches[0][1]), nil
	}

	actions := make([]string, 0, len(matches))
	for _, m := range matches {
		actions = append(actions, m[1])
	}
	msg, err := a.render(a.cfg.FormatErrorTemplate, map[string]any{"actions": actions})
	if err != nil {
		return "", fmt.Errorf("rendering format error: %w", err)
	}
	return "", formatError(msg)
}

func (a *DefaultAgent) execute(ctx context.Context, action string) (models.ExecResult, error) {
	if a.hooks.execute != nil {
		if err := a.hooks.execute(ctx, action); err != nil {
			return models.ExecResult{}, err
		}
	}

	result, err := a.env.Execute(ctx, action, "")
	if err != nil {
		if !errors.Is(err, models.ErrTimeout) {
			return models.ExecResult{}, fmt.Errorf("executing action: %w", err)
		}
		var output string
		var te *models.TimeoutError
		if errors.As(err, &te) {
			output = te.Output
		}
		msg, rerr := a.render(a.cfg.TimeoutTemplate, map[string]any{"action": action, "output": output})
		if rerr != nil {
			return models.ExecResult{}, fmt.Errorf("rendering timeout message: %w", rerr)
		}
		return models.ExecResult{}, executionTimeout(msg)
	}

	if submission, ok := finished(result.Output); ok {
		return models.ExecResult{}, submitted(submission)
	}
	return result, nil
}

// finished reports whether output starts with SubmitMarker and returns the
// text after the marker line.
func finished(output string) (string, bool) {
	lines := strings.SplitAfter(strings.TrimLeft(output, " \t\r\n"), "\n")
	if strings.TrimSpace(lines[0]) != SubmitMarker {
		return "", false
	}
	return strings.Join(lines[1:], ""), true
}

func (a *DefaultAgent) addMessage(role, content string) {
	a.appendMessage(models.Message{Role: role, Content: content})
}

func (a *DefaultAgent) appendMessage(msg models.Message) {
	a.messages = append(a.messages, msg)
	if a.hooks.message != nil {
		a.hooks.message(msg)
	}
}

func (a *DefaultAgent) render(tmpl string, extra map[string]any) (string, error) {
	vars := mergeVars(
		models.Vars(a.cfg),
		a.env.TemplateVars(),
		a.model.TemplateVars(),
		a.vars,
		extra,
	)
	return render(tmpl, vars)
}
