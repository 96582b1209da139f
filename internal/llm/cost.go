package llm

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spachava753/coderun/internal/models"
)

// ErrUnknownPrice is returned when the cost of a call cannot be computed and
// cost tracking is not set to ignore errors.
var ErrUnknownPrice error = models.NewKindError("UnknownPrice", "unknown model price")

// price is USD per million tokens.
type price struct {
	input  float64
	output float64
}

// prices is matched by longest model name prefix, so dated snapshots such as
// claude-sonnet-4-5-20250929 resolve to their family.
var prices = map[string]price{
	"gpt-4o":            {input: 2.50, output: 10.00},
	"gpt-4o-mini":       {input: 0.15, output: 0.60},
	"gpt-4.1":           {input: 2.00, output: 8.00},
	"gpt-4.1-mini":      {input: 0.40, output: 1.60},
	"gpt-4.1-nano":      {input: 0.10, output: 0.40},
	"gpt-5":             {input: 1.25, output: 10.00},
	"gpt-5-mini":        {input: 0.25, output: 2.00},
	"gpt-5-nano":        {input: 0.05, output: 0.40},
	"o3":                {input: 2.00, output: 8.00},
	"o4-mini":           {input: 1.10, output: 4.40},
	"claude-3-5-haiku":  {input: 0.80, output: 4.00},
	"claude-haiku-4-5":  {input: 1.00, output: 5.00},
	"claude-sonnet-4":   {input: 3.00, output: 15.00},
	"claude-sonnet-4-5": {input: 3.00, output: 15.00},
	"claude-opus-4":     {input: 15.00, output: 75.00},
	"claude-opus-4-1":   {input: 15.00, output: 75.00},
}

var warnOnce sync.Map

// lookupPrice returns the configured price for the model, falling back to the
// built-in table.
func lookupPrice(cfg models.ModelConfig) (price, bool) {
	if cfg.InputCostPerMillion != nil && cfg.OutputCostPerMillion != nil {
		return price{input: *cfg.InputCostPerMillion, output: *cfg.OutputCostPerMillion}, true
	}

	name := apiModelName(cfg.ModelName)
	var best string
	for prefix := range prices {
		if strings.HasPrefix(name, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return price{}, false
	}
	return prices[best], true
}

// callCost computes the cost of one call from its token usage.
func callCost(cfg models.ModelConfig, inputTokens, outputTokens int64) (float64, error) {
	p, ok := lookupPrice(cfg)
	if !ok {
		if cfg.CostTracking == models.CostTrackingIgnoreErrors {
			if _, warned := warnOnce.LoadOrStore(cfg.ModelName, true); !warned {
				slog.Warn("no price known for model, recording zero cost", "model", cfg.ModelName)
			}
			return 0, nil
		}
		return 0, fmt.Errorf("%w for %q: set input_cost_per_million and output_cost_per_million, or cost_tracking: ignore_errors", ErrUnknownPrice, cfg.ModelName)
	}
	return (float64(inputTokens)*p.input + float64(outputTokens)*p.output) / 1e6, nil
}
