// Package llm provides the model clients an agent can query.
package llm

import (
	"fmt"
	"strings"

	"github.com/spachava753/coderun/internal/agent"
	"github.com/spachava753/coderun/internal/models"
)

const (
	ClassOpenAI        = "openai"
	ClassAnthropic     = "anthropic"
	ClassDeterministic = "deterministic"
)

// New creates the model described by cfg. The class is taken from
// cfg.ModelClass, or inferred from the model name.
func New(cfg models.ModelConfig) (agent.Model, error) {
	switch class := modelClass(cfg); class {
	case ClassOpenAI:
		m, err := NewOpenAI(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ClassAnthropic:
		m, err := NewAnthropic(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ClassDeterministic:
		return NewDeterministic(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported model class: %s", class)
	}
}

func modelClass(cfg models.ModelConfig) string {
	if cfg.ModelClass != "" {
		return cfg.ModelClass
	}
	name := strings.ToLower(cfg.ModelName)
	if strings.HasPrefix(name, "anthropic/") || strings.HasPrefix(name, "claude") {
		return ClassAnthropic
	}
	return ClassOpenAI
}

// apiModelName strips a provider prefix the API itself does not understand.
func apiModelName(name string) string {
	for _, prefix := range []string{"openai/", "anthropic/"} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}

// counters tracks spend the same way for every client.
type counters struct {
	cost   float64
	nCalls int
}

func (c *counters) Cost() float64 { return c.cost }
func (c *counters) NCalls() int   { return c.nCalls }

func (c *counters) record(cost float64) {
	c.cost += cost
	c.nCalls++
}

func templateVars(cfg models.ModelConfig, c *counters) map[string]any {
	vars := models.Vars(cfg)
	vars["n_model_calls"] = c.nCalls
	vars["model_cost"] = c.cost
	return vars
}

// floatArg reads a numeric model_kwargs entry. YAML and TOML decode numbers
// into different Go types.
func floatArg(args map[string]any, key string) (float64, bool) {
	switch v := args[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

func intArg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	}
	return 0, false
}
