package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spachava753/coderun/internal/models"
)

// Prompter is the operator console used by InteractiveAgent.
type Prompter interface {
	// Prompt shows label and returns the operator's reply.
	Prompt(ctx context.Context, label string) (string, error)

	// Show displays a conversation message to the operator.
	Show(msg models.Message)
}

// Mode switch commands understood at every prompt.
const (
	cmdYolo    = "/y"
	cmdConfirm = "/c"
	cmdHuman   = "/h"
)

// InteractiveAgent is a DefaultAgent that involves an operator: commands can
// require confirmation, the operator can type commands in place of the model,
// and a submission can be turned into a follow-up task.
type InteractiveAgent struct {
	*DefaultAgent
	prompter  Prompter
	mode      models.AgentMode
	whitelist []*regexp.Regexp
}

// NewInteractive creates an interactive agent. Whitelist entries are regular
// expressions; matching commands never ask for confirmation.
func NewInteractive(cfg models.AgentConfig, model Model, env Environment, prompter Prompter) (*InteractiveAgent, error) {
	mode := cfg.Mode
	switch mode {
	case "":
		mode = models.ModeConfirm
	case models.ModeConfirm, models.ModeYolo, models.ModeHuman:
	default:
		return nil, fmt.Errorf("unknown agent mode %q", cfg.Mode)
	}

	whitelist := make([]*regexp.Regexp, 0, len(cfg.WhitelistActions))
	for _, pattern := range cfg.WhitelistActions {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling whitelist pattern %q: %w", pattern, err)
		}
		whitelist = append(whitelist, re)
	}

	a := &InteractiveAgent{
		DefaultAgent: New(cfg, model, env),
		prompter:     prompter,
		mode:         mode,
		whitelist:    whitelist,
	}
	a.hooks = hooks{
		query:       a.humanQuery,
		execute:     a.confirmAction,
		onTerminate: a.confirmExit,
		message:     prompter.Show,
	}
	return a, nil
}

// Mode returns the current interaction mode, which the operator can change
// during the run.
func (a *InteractiveAgent) Mode() models.AgentMode {
	return a.mode
}

func (a *InteractiveAgent) humanQuery(ctx context.Context) (models.Response, bool, error) {
	if a.mode != models.ModeHuman {
		return models.Response{}, false, nil
	}

	input, err := a.prompter.Prompt(ctx, "Command (/y yolo, /c confirm): ")
	if err != nil {
		return models.Response{}, false, interrupted(ctx, err)
	}
	if a.switchMode(input) {
		return a.humanQuery(ctx)
	}
	return models.Response{Content: "\n```bash\n" + input + "\n```"}, true, nil
}

func (a *InteractiveAgent) confirmAction(ctx context.Context, action string) error {
	if a.mode != models.ModeConfirm || a.whitelisted(action) {
		return nil
	}

	input, err := a.prompter.Prompt(ctx, "Execute? Enter to confirm, or type a comment to reject: ")
	if err != nil {
		return interrupted(ctx, err)
	}
	if a.switchMode(input) || strings.TrimSpace(input) == "" {
		return nil
	}
	return &NonTerminatingError{
		Status:  models.ExitUserRejection,
		Message: "Command not executed. The user rejected your command with the following message: " + input,
	}
}

func (a *InteractiveAgent) confirmExit(ctx context.Context, term *TerminatingError) error {
	if term.Status != models.ExitSubmitted || !a.cfg.ConfirmExit {
		return term
	}

	input, err := a.prompter.Prompt(ctx, "Agent wants to finish. Enter to quit, or type a new task: ")
	if err != nil {
		return interrupted(ctx, err)
	}
	if strings.TrimSpace(input) == "" {
		return term
	}
	return &NonTerminatingError{
		Status:  models.ExitUserInterruption,
		Message: "The user added a new task: " + input,
	}
}

// switchMode applies a mode command and reports whether input was one.
func (a *InteractiveAgent) switchMode(input string) bool {
	switch strings.TrimSpace(input) {
	case cmdYolo:
		a.mode = models.ModeYolo
	case cmdConfirm:
		a.mode = models.ModeConfirm
	case cmdHuman:
		a.mode = models.ModeHuman
	default:
		return false
	}
	return true
}

func (a *InteractiveAgent) whitelisted(action string) bool {
	for _, re := range a.whitelist {
		if re.MatchString(action) {
			return true
		}
	}
	return false
}

// interrupted turns a failed prompt into a terminating error so the run still
// ends with a recorded status.
func interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &TerminatingError{
		Status:  models.ExitUserInterruption,
		Message: fmt.Sprintf("interrupted by user: %v", err),
	}
}
