package llm

import (
	"context"

	"github.com/spachava753/coderun/internal/models"
)

// ErrOutputsExhausted is returned once a deterministic model has replied with
// every scripted output.
var ErrOutputsExhausted error = models.NewKindError("OutputsExhausted", "deterministic model: no more outputs")

// DeterministicModel replays scripted outputs. It is used for dry runs and
// tests.
type DeterministicModel struct {
	counters
	cfg models.ModelConfig
}

// NewDeterministic creates a model that returns cfg.Outputs in order, adding
// cfg.CostPerCall per reply.
func NewDeterministic(cfg models.ModelConfig) *DeterministicModel {
	return &DeterministicModel{cfg: cfg}
}

func (m *DeterministicModel) Config() any { return m.cfg }

func (m *DeterministicModel) TemplateVars() map[string]any {
	return templateVars(m.cfg, &m.counters)
}

func (m *DeterministicModel) Query(ctx context.Context, messages []models.Message) (models.Response, error) {
	if err := ctx.Err(); err != nil {
		return models.Response{}, err
	}
	if m.nCalls >= len(m.cfg.Outputs) {
		return models.Response{}, ErrOutputsExhausted
	}
	out := m.cfg.Outputs[m.nCalls]
	m.record(m.cfg.CostPerCall)
	return models.Response{Content: out}, nil
}
