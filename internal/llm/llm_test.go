package llm

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/spachava753/coderun/internal/models"
)

func ptr(f float64) *float64 {
	return &f
}

func TestModelClass(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.ModelConfig
		want string
	}{
		{name: "explicit class wins", cfg: models.ModelConfig{ModelName: "claude-sonnet-4", ModelClass: ClassDeterministic}, want: ClassDeterministic},
		{name: "anthropic prefix", cfg: models.ModelConfig{ModelName: "anthropic/claude-opus-4-1"}, want: ClassAnthropic},
		{name: "bare claude name", cfg: models.ModelConfig{ModelName: "Claude-Haiku-4-5"}, want: ClassAnthropic},
		{name: "openai default", cfg: models.ModelConfig{ModelName: "gpt-4.1"}, want: ClassOpenAI},
		{name: "openai prefix", cfg: models.ModelConfig{ModelName: "openai/gpt-5"}, want: ClassOpenAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := modelClass(tt.cfg); got != tt.want {
				t.Errorf("modelClass() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIModelName(t *testing.T) {
	tests := map[string]string{
		"openai/gpt-5":            "gpt-5",
		"anthropic/claude-opus-4": "claude-opus-4",
		"gpt-4o":                  "gpt-4o",
		"local/qwen":              "local/qwen",
	}
	for in, want := range tests {
		if got := apiModelName(in); got != want {
			t.Errorf("apiModelName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     models.ModelConfig
		want    any
		wantErr bool
	}{
		{name: "openai", cfg: models.ModelConfig{ModelName: "gpt-4o", APIKey: "sk-test"}, want: &OpenAIModel{}},
		{name: "anthropic", cfg: models.ModelConfig{ModelName: "claude-sonnet-4-5", APIKey: "sk-test"}, want: &AnthropicModel{}},
		{name: "deterministic", cfg: models.ModelConfig{ModelClass: ClassDeterministic}, want: &DeterministicModel{}},
		{name: "unknown class", cfg: models.ModelConfig{ModelName: "x", ModelClass: "litellm"}, wantErr: true},
		{name: "openai without name", cfg: models.ModelConfig{ModelClass: ClassOpenAI}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got model %T", m)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			switch tt.want.(type) {
			case *OpenAIModel:
				if _, ok := m.(*OpenAIModel); !ok {
					t.Errorf("New() = %T, want *OpenAIModel", m)
				}
			case *AnthropicModel:
				if _, ok := m.(*AnthropicModel); !ok {
					t.Errorf("New() = %T, want *AnthropicModel", m)
				}
			case *DeterministicModel:
				if _, ok := m.(*DeterministicModel); !ok {
					t.Errorf("New() = %T, want *DeterministicModel", m)
				}
			}
		})
	}
}

func TestCallCost(t *testing.T) {
	tests := []struct {
		name    string
		cfg     models.ModelConfig
		in, out int64
		want    float64
		wantErr error
	}{
		{
			name: "table price",
			cfg:  models.ModelConfig{ModelName: "gpt-4o"},
			in:   1_000_000, out: 100_000,
			want: 2.50 + 1.00,
		},
		{
			name: "longest prefix wins",
			cfg:  models.ModelConfig{ModelName: "gpt-4o-mini-2024-07-18"},
			in:   1_000_000, out: 1_000_000,
			want: 0.15 + 0.60,
		},
		{
			name: "dated snapshot with provider prefix",
			cfg:  models.ModelConfig{ModelName: "anthropic/claude-sonnet-4-5-20250929"},
			in:   2_000_000, out: 0,
			want: 6.00,
		},
		{
			name: "configured price overrides table",
			cfg:  models.ModelConfig{ModelName: "gpt-4o", InputCostPerMillion: ptr(1), OutputCostPerMillion: ptr(2)},
			in:   1_000_000, out: 1_000_000,
			want: 3,
		},
		{
			name:    "unknown price",
			cfg:     models.ModelConfig{ModelName: "my-local-model"},
			in:      10, out: 10,
			wantErr: ErrUnknownPrice,
		},
		{
			name: "unknown price ignored",
			cfg:  models.ModelConfig{ModelName: "my-local-model", CostTracking: models.CostTrackingIgnoreErrors},
			in:   10, out: 10,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := callCost(tt.cfg, tt.in, tt.out)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("callCost() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("callCost() error: %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("callCost() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	args := map[string]any{
		"temperature": 0,
		"top_p":       float32(0.5),
		"max_tokens":  int64(1024),
		"seed":        "nope",
	}

	if v, ok := floatArg(args, "temperature"); !ok || v != 0 {
		t.Errorf("floatArg(temperature) = %v, %v", v, ok)
	}
	if v, ok := floatArg(args, "top_p"); !ok || v != 0.5 {
		t.Errorf("floatArg(top_p) = %v, %v", v, ok)
	}
	if v, ok := intArg(args, "max_tokens"); !ok || v != 1024 {
		t.Errorf("intArg(max_tokens) = %v, %v", v, ok)
	}
	if _, ok := floatArg(args, "seed"); ok {
		t.Error("floatArg(seed) should not parse a string")
	}
	if _, ok := intArg(args, "missing"); ok {
		t.Error("intArg(missing) should report absence")
	}
}

func TestDeterministicModel(t *testing.T) {
	m := NewDeterministic(models.ModelConfig{
		ModelName:   "scripted",
		Outputs:     []string{"first", "second"},
		CostPerCall: 0.25,
	})
	ctx := context.Background()

	for i, want := range []string{"first", "second"} {
		resp, err := m.Query(ctx, nil)
		if err != nil {
			t.Fatalf("query %d: %v", i, err)
		}
		if resp.Content != want {
			t.Errorf("query %d = %q, want %q", i, resp.Content, want)
		}
	}

	if _, err := m.Query(ctx, nil); !errors.Is(err, ErrOutputsExhausted) {
		t.Errorf("expected ErrOutputsExhausted, got %v", err)
	}

	if m.NCalls() != 2 {
		t.Errorf("NCalls() = %d, want 2", m.NCalls())
	}
	if m.Cost() != 0.5 {
		t.Errorf("Cost() = %f, want 0.5", m.Cost())
	}

	vars := m.TemplateVars()
	if vars["model_name"] != "scripted" {
		t.Errorf("model_name var = %v", vars["model_name"])
	}
	if vars["n_model_calls"] != 2 {
		t.Errorf("n_model_calls var = %v", vars["n_model_calls"])
	}
	if _, ok := vars["api_key"]; ok {
		t.Error("template vars must not expose the api key")
	}
}

func TestDeterministicModelCancelled(t *testing.T) {
	m := NewDeterministic(models.ModelConfig{Outputs: []string{"x"}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Query(ctx, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if m.NCalls() != 0 {
		t.Errorf("cancelled query must not count, got %d calls", m.NCalls())
	}
}
