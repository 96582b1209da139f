// Package agent defines the capabilities a model, an environment and an agent
// must provide to be run and recorded, and the default agent loop built on
// top of them.
package agent

import (
	"context"

	"github.com/spachava753/coderun/internal/models"
)

// Model is a language model that tracks its own spend.
type Model interface {
	// Config returns the settings the model was built from.
	Config() any

	// Cost returns the cumulative cost of all queries so far.
	Cost() float64

	// NCalls returns the number of queries issued so far.
	NCalls() int

	// Query sends the conversation to the model and returns its reply.
	Query(ctx context.Context, messages []models.Message) (models.Response, error)

	// TemplateVars returns variables made available to prompt templates.
	TemplateVars() map[string]any
}

// Environment executes shell commands on behalf of an agent.
type Environment interface {
	// Config returns the settings the environment was built from.
	Config() any

	// Execute runs command in cwd, or in the environment's default directory
	// when cwd is empty. Timeouts are reported as errors matching
	// models.ErrTimeout.
	Execute(ctx context.Context, command, cwd string) (models.ExecResult, error)

	// TemplateVars returns variables made available to prompt templates.
	TemplateVars() map[string]any
}

// Agent drives a model and an environment to solve a task.
type Agent interface {
	Model() Model
	Env() Environment

	// Messages returns the conversation so far, oldest first.
	Messages() []models.Message

	// Config returns the settings the agent was built from.
	Config() any

	// Run works on task until the agent stops and reports how it ended.
	Run(ctx context.Context, task string) (exitStatus, result string, err error)
}
